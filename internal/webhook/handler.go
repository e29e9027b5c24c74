package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
)

// TokenSource supplies the expected verification token for subscription
// callback validation. The subscription manager implements it.
type TokenSource interface {
	VerifyToken() string
}

// EventHandler consumes validated push events.
type EventHandler interface {
	HandleEvent(event Event)
}

// Handler is the webhook HTTP surface: callback validation on GET, event
// delivery on POST. Deliveries are acknowledged immediately and processed on
// background goroutines; Strava retries deliveries that take longer than two
// seconds to answer.
type Handler struct {
	tokens        TokenSource
	events        EventHandler
	signingSecret string
	logger        *log.Logger

	wg sync.WaitGroup
}

// HandlerOption configures optional behaviour for the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger overrides the logger.
func WithHandlerLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler builds a Handler. signingSecret is the application client secret
// Strava signs delivery bodies with; an empty secret disables signature
// checking, which is announced loudly because it leaves deliveries
// unauthenticated.
func NewHandler(tokens TokenSource, events EventHandler, signingSecret string, opts ...HandlerOption) *Handler {
	h := &Handler{
		tokens:        tokens,
		events:        events,
		signingSecret: signingSecret,
		logger:        log.New(log.Writer(), "[webhook] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	if signingSecret == "" {
		h.logger.Printf("no signing secret configured; deliveries are accepted without signature verification")
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.webhook)
}

// Wait blocks until all dispatched event goroutines have finished. Called on
// shutdown so in-flight activities complete before the process exits.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.deliver(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// verify answers the subscription callback validation handshake. A GET without
// hub parameters is treated as a plain readiness probe.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "" && token == "" && challenge == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if mode != "subscribe" {
		writeError(w, http.StatusBadRequest, "invalid_request", "unsupported hub.mode")
		return
	}
	if expected := h.tokens.VerifyToken(); expected == "" || token != expected {
		h.logger.Printf("callback validation with wrong verify token")
		writeError(w, http.StatusForbidden, "forbidden", "verify token mismatch")
		return
	}

	h.logger.Printf("callback validation succeeded")
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// deliver authenticates and dispatches one push event. The response is sent
// before processing happens.
func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	if h.signingSecret != "" && !h.signatureValid(r.Header.Get("X-Hub-Signature"), body) {
		h.logger.Printf("rejected delivery with invalid signature")
		writeError(w, http.StatusForbidden, "forbidden", "invalid signature")
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := event.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	eventsReceived.WithLabelValues(event.ObjectType, event.AspectType).Inc()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.events.HandleEvent(event)
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// signatureValid checks the hex HMAC-SHA256 of the raw body against the
// X-Hub-Signature header using a constant-time comparison.
func (h *Handler) signatureValid(header string, body []byte) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.signingSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
