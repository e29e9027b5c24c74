// Package garmin provides a minimal Garmin Connect client: activity download
// in the original upload format and activity search by date.
package garmin

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// Activity is one entry of an activity search result.
type Activity struct {
	ID       int64
	Duration float64 // seconds
	Distance float64 // meters
}

// Client talks to Garmin Connect. OAuth token material is cached in a token
// file between runs so repeated invocations skip the SSO login.
type Client struct {
	username  string
	password  string
	tokenFile string

	connectURL string
	ssoURL     string
	httpClient *retryablehttp.Client
	logger     *log.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithBaseURLs overrides the Garmin Connect and SSO endpoints.
func WithBaseURLs(connectURL, ssoURL string) Option {
	return func(c *Client) {
		c.connectURL = connectURL
		c.ssoURL = ssoURL
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a Client for the given account. The token file may point at
// a non-existent path; it is created after the first login.
func NewClient(username, password, tokenFile string, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.Logger = nil
	if jar, err := cookiejar.New(nil); err == nil {
		httpClient.HTTPClient.Jar = jar
	}
	httpClient.HTTPClient.Timeout = 30 * time.Second

	c := &Client{
		username:   username,
		password:   password,
		tokenFile:  tokenFile,
		connectURL: "https://connect.garmin.com",
		ssoURL:     "https://sso.garmin.com",
		httpClient: httpClient,
		logger:     log.New(log.Writer(), "[garmin] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DownloadActivity fetches the original upload for an activity id. Garmin
// serves it as a zip archive wrapping exactly one file.
func (c *Client) DownloadActivity(ctx context.Context, id string) ([]byte, error) {
	c.logger.Printf("downloading activity %s", id)

	body, err := c.get(ctx, fmt.Sprintf("%s/download-service/files/activity/%s", c.connectURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	return extractSingleFile(body)
}

// ActivitiesByDate lists activities whose start date falls in [from, to).
func (c *Client) ActivitiesByDate(ctx context.Context, from, to time.Time) ([]Activity, error) {
	query := url.Values{
		"startDate": {from.Format("2006-01-02")},
		"endDate":   {to.Format("2006-01-02")},
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/activitylist-service/activities/search/activities?%s", c.connectURL, query.Encode()))
	if err != nil {
		return nil, err
	}

	var activities []Activity
	for _, entry := range gjson.ParseBytes(body).Array() {
		activities = append(activities, Activity{
			ID:       entry.Get("activityId").Int(),
			Duration: entry.Get("duration").Float(),
			Distance: entry.Get("distance").Float(),
		})
	}
	return activities, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("garmin request failed (status=%d): %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(resp.Body)
}

// bearer returns a valid access token, reusing the in-memory or on-disk token
// when possible and logging in otherwise.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	if token, expiry, err := c.loadTokenFile(); err == nil && time.Now().Before(expiry) {
		c.accessToken, c.tokenExpiry = token, expiry
		return token, nil
	}

	token, expiry, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.accessToken, c.tokenExpiry = token, expiry
	if err := c.saveTokenFile(token, expiry); err != nil {
		c.logger.Printf("failed to persist token file %s: %v", c.tokenFile, err)
	}
	return token, nil
}

var ticketPattern = regexp.MustCompile(`ticket=(ST-[^"'\\]+)`)

// login runs the SSO signin and exchanges the service ticket for an OAuth
// access token.
func (c *Client) login(ctx context.Context) (string, time.Time, error) {
	c.logger.Printf("logging in to Garmin Connect as %s", c.username)

	form := url.Values{
		"username": {c.username},
		"password": {c.password},
		"embed":    {"true"},
	}
	signinURL := fmt.Sprintf("%s/sso/signin?service=%s", c.ssoURL, url.QueryEscape(c.connectURL+"/modern"))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, signinURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("garmin signin failed (status=%d)", resp.StatusCode)
	}

	match := ticketPattern.FindSubmatch(body)
	if match == nil {
		return "", time.Time{}, fmt.Errorf("garmin signin response carried no service ticket")
	}

	exchangeReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/modern/di-oauth/exchange?ticket=%s", c.connectURL, url.QueryEscape(string(match[1]))), nil)
	if err != nil {
		return "", time.Time{}, err
	}
	exchangeResp, err := c.httpClient.Do(exchangeReq)
	if err != nil {
		return "", time.Time{}, err
	}
	defer exchangeResp.Body.Close()
	if exchangeResp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("garmin token exchange failed (status=%d)", exchangeResp.StatusCode)
	}

	exchangeBody, err := io.ReadAll(exchangeResp.Body)
	if err != nil {
		return "", time.Time{}, err
	}
	token := gjson.GetBytes(exchangeBody, "access_token").String()
	if token == "" {
		return "", time.Time{}, fmt.Errorf("garmin token exchange response carried no access_token")
	}
	expiresIn := gjson.GetBytes(exchangeBody, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return token, time.Now().Add(time.Duration(expiresIn) * time.Second), nil
}

type tokenFilePayload struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (c *Client) loadTokenFile() (string, time.Time, error) {
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return "", time.Time{}, err
	}
	var payload tokenFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", time.Time{}, err
	}
	return payload.AccessToken, payload.ExpiresAt, nil
}

func (c *Client) saveTokenFile(token string, expiry time.Time) error {
	data, err := json.Marshal(tokenFilePayload{AccessToken: token, ExpiresAt: expiry})
	if err != nil {
		return err
	}
	return os.WriteFile(c.tokenFile, data, 0o600)
}

// extractSingleFile unwraps the one file Garmin zips around an original
// activity upload.
func extractSingleFile(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("unexpected activity archive: %w", err)
	}
	if len(reader.File) != 1 {
		return nil, fmt.Errorf("expected one file in activity archive, got %d", len(reader.File))
	}
	file, err := reader.File[0].Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
