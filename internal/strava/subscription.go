package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/stravasensor/internal/retry"
)

// ErrMissingCredentials reports that the subscription manager lacks required
// configuration.
var ErrMissingCredentials = errors.New("missing STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET or STRAVA_WEBHOOK_URL")

// Subscription is one push-subscription record on the provider side.
type Subscription struct {
	ID          int64  `json:"id"`
	CallbackURL string `json:"callback_url"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// SubscriptionManager keeps the Strava push registration consistent with the
// gateway's callback URL. Strava allows a single subscription per application,
// scoped by callback URL.
//
// Two locks, deliberately: mu serialises the ensure/delete flows, while
// stateMu guards the verify token and cached id. Strava validates the
// callback URL synchronously while the create request is in flight, and the
// webhook handler answers that validation through VerifyToken(); the token
// must therefore stay readable while mu is held across the network calls.
type SubscriptionManager struct {
	clientID     string
	clientSecret string
	callbackURL  string

	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *log.Logger

	mu sync.Mutex

	stateMu        sync.Mutex
	verifyToken    string
	subscriptionID int64
}

// ManagerOption configures optional behaviour for the SubscriptionManager.
type ManagerOption func(*SubscriptionManager)

// WithManagerBaseURL overrides the API endpoint.
func WithManagerBaseURL(baseURL string) ManagerOption {
	return func(m *SubscriptionManager) {
		m.baseURL = baseURL
	}
}

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger *log.Logger) ManagerOption {
	return func(m *SubscriptionManager) {
		m.logger = logger
		m.policy.Logger = logger
	}
}

// NewSubscriptionManager builds a SubscriptionManager. verifyToken may be
// empty; a random token is generated on the first EnsureSubscription call and
// becomes the effective expected token for webhook verification.
func NewSubscriptionManager(clientID, clientSecret, callbackURL, verifyToken string, policy retry.Policy, opts ...ManagerOption) *SubscriptionManager {
	logger := log.New(log.Writer(), "[subscription] ", log.LstdFlags)
	policy.Logger = logger
	m := &SubscriptionManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		callbackURL:  callbackURL,
		verifyToken:  verifyToken,
		baseURL:      "https://www.strava.com",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		policy:       policy,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VerifyToken returns the effective verification token. It must not block on
// in-flight ensure/delete flows; the callback validation GET arrives while the
// create request is still pending.
func (m *SubscriptionManager) VerifyToken() string {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.verifyToken
}

// SubscriptionID returns the cached subscription id, or 0 when none is active.
func (m *SubscriptionManager) SubscriptionID() int64 {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.subscriptionID
}

// EnsureSubscription makes sure a push subscription for the configured
// callback URL exists and returns its id. It re-attaches to a subscription
// left over from a previous run when the provider already has one for this
// callback URL. Concurrent callers are serialised; the second caller observes
// the first caller's result without making its own network calls.
func (m *SubscriptionManager) EnsureSubscription(ctx context.Context) (int64, error) {
	if m.clientID == "" || m.clientSecret == "" || m.callbackURL == "" {
		return 0, ErrMissingCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.Lock()
	if m.verifyToken == "" {
		m.verifyToken = uuid.NewString()
		m.logger.Printf("generated webhook verify token")
	}
	token := m.verifyToken
	cached := m.subscriptionID
	m.stateMu.Unlock()
	if cached != 0 {
		return cached, nil
	}

	existing, err := retry.Do(ctx, m.policy, "list Strava subscriptions", func() (int64, error) {
		return m.findByCallbackURL(ctx)
	})
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		m.logger.Printf("using existing subscription %d", existing)
		m.setSubscriptionID(existing)
		return existing, nil
	}

	created, err := retry.Do(ctx, m.policy, "create Strava subscription", func() (int64, error) {
		return m.create(ctx, token)
	})
	if err != nil {
		return 0, err
	}
	m.logger.Printf("created subscription %d", created)
	m.setSubscriptionID(created)
	return created, nil
}

func (m *SubscriptionManager) setSubscriptionID(id int64) {
	m.stateMu.Lock()
	m.subscriptionID = id
	m.stateMu.Unlock()
}

// DeleteSubscription removes the cached subscription on the provider side.
// The cached id is cleared in every outcome, including failure, so a broken
// provider state is never retried indefinitely.
func (m *SubscriptionManager) DeleteSubscription(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.Lock()
	id := m.subscriptionID
	m.subscriptionID = 0
	m.stateMu.Unlock()
	if id == 0 {
		return nil
	}

	status, err := retry.Do(ctx, m.policy, fmt.Sprintf("delete Strava subscription %d", id), func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			fmt.Sprintf("%s/api/v3/push_subscriptions/%d?%s", m.baseURL, id, m.authParams().Encode()), nil)
		if err != nil {
			return 0, err
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		m.logger.Printf("deleted subscription %d", id)
	default:
		m.logger.Printf("unexpected status %d deleting subscription %d", status, id)
	}
	return nil
}

func (m *SubscriptionManager) authParams() url.Values {
	return url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}
}

// findByCallbackURL returns the id of an existing subscription registered for
// this manager's callback URL, or 0 when none matches.
func (m *SubscriptionManager) findByCallbackURL(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v3/push_subscriptions?%s", m.baseURL, m.authParams().Encode()), nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("list subscriptions failed (status=%d): %s", resp.StatusCode, snippet)
	}

	var subscriptions []Subscription
	if err := json.NewDecoder(resp.Body).Decode(&subscriptions); err != nil {
		return 0, err
	}
	for _, sub := range subscriptions {
		if sub.CallbackURL == m.callbackURL {
			return sub.ID, nil
		}
	}
	return 0, nil
}

func (m *SubscriptionManager) create(ctx context.Context, verifyToken string) (int64, error) {
	form := m.authParams()
	form.Set("callback_url", m.callbackURL)
	form.Set("verify_token", verifyToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/v3/push_subscriptions", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("create subscription failed (status=%d): %s", resp.StatusCode, snippet)
	}

	var created Subscription
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// ListSubscriptions returns every push subscription registered for the
// application. Used by the subscription CLI commands.
func (m *SubscriptionManager) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v3/push_subscriptions?%s", m.baseURL, m.authParams().Encode()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list subscriptions failed (status=%d): %s", resp.StatusCode, snippet)
	}

	var subscriptions []Subscription
	if err := json.NewDecoder(resp.Body).Decode(&subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// DeleteSubscriptionByID removes one subscription regardless of the cached
// state. Used by the subscription CLI commands.
func (m *SubscriptionManager) DeleteSubscriptionByID(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/v3/push_subscriptions/%d?%s", m.baseURL, id, m.authParams().Encode()), nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete subscription %d failed (status=%d)", id, resp.StatusCode)
	}
}
