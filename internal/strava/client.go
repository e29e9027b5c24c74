// Package strava talks to the Strava v3 API: activity metadata for
// cross-provider correlation and push-subscription lifecycle management.
package strava

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// ActivityDetail is the provider-side metadata of one activity, enough to
// fingerprint it against other providers.
type ActivityDetail struct {
	ID          int64
	ExternalID  string
	StartDate   time.Time
	ElapsedTime time.Duration
	Distance    float64 // meters
}

// Client is an authenticated Strava API client. Access tokens are minted from
// the configured refresh token and cached until shortly before expiry.
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string

	baseURL    string
	httpClient *retryablehttp.Client
	logger     *log.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a Client around application credentials and a user refresh
// token.
func NewClient(clientID, clientSecret, refreshToken string, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = 30 * time.Second

	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		baseURL:      "https://www.strava.com",
		httpClient:   httpClient,
		logger:       log.New(log.Writer(), "[strava] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActivityDetail fetches the metadata of one activity.
func (c *Client) ActivityDetail(ctx context.Context, id int64) (ActivityDetail, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return ActivityDetail{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v3/activities/%d", c.baseURL, id), nil)
	if err != nil {
		return ActivityDetail{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ActivityDetail{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ActivityDetail{}, fmt.Errorf("activity %d not found", id)
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ActivityDetail{}, fmt.Errorf("strava activity request failed (status=%d): %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ActivityDetail{}, err
	}

	detail := ActivityDetail{
		ID:          gjson.GetBytes(body, "id").Int(),
		ExternalID:  gjson.GetBytes(body, "external_id").String(),
		ElapsedTime: time.Duration(gjson.GetBytes(body, "elapsed_time").Int()) * time.Second,
		Distance:    gjson.GetBytes(body, "distance").Float(),
	}
	if raw := gjson.GetBytes(body, "start_date").String(); raw != "" {
		start, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return ActivityDetail{}, fmt.Errorf("invalid start_date %q: %w", raw, parseErr)
		}
		detail.StartDate = start
	}
	return detail, nil
}

// bearer returns a valid access token, refreshing it when missing or expiring
// within the next minute.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(time.Minute).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("strava token refresh failed (status=%d): %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("strava token refresh response carried no access_token")
	}
	c.accessToken = token
	c.tokenExpiry = time.Unix(gjson.GetBytes(body, "expires_at").Int(), 0)
	if refreshed := gjson.GetBytes(body, "refresh_token").String(); refreshed != "" {
		c.refreshToken = refreshed
	}
	c.logger.Printf("refreshed access token, expires %s", c.tokenExpiry.Format(time.RFC3339))
	return token, nil
}
