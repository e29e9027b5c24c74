// Package mqtt publishes device state to an MQTT broker with bounded retries
// and emits Home Assistant discovery documents for each sensor device.
package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// transport is the slice of the paho client the publisher uses. Narrowed to an
// interface so retry behaviour is testable without a broker.
type transport interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Client wraps an MQTT connection with retrying publishes. Publish failures
// are reported, not returned as errors; a lost broker must not take down
// webhook processing.
type Client struct {
	transport transport
	retries   int
	baseDelay time.Duration
	logger    *log.Logger
}

// ClientOption configures optional behaviour for the Client.
type ClientOption func(*Client)

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Connect dials the broker and returns a publishing Client. The underlying
// connection auto-reconnects; transient outages are ridden out by the publish
// retry loop.
func Connect(brokerURL, username, password string, retries int, baseDelay time.Duration, opts ...ClientOption) (*Client, error) {
	options := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("strava-sensor-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(2 * time.Minute).
		SetConnectTimeout(10 * time.Second)
	if username != "" {
		options.SetUsername(username)
		options.SetPassword(password)
	}

	pahoClient := paho.NewClient(options)
	token := pahoClient.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", brokerURL, err)
	}

	c := newClient(pahoClient, retries, baseDelay)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newClient(transport transport, retries int, baseDelay time.Duration) *Client {
	if retries <= 0 {
		retries = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Client{
		transport: transport,
		retries:   retries,
		baseDelay: baseDelay,
		logger:    log.New(log.Writer(), "[mqtt] ", log.LstdFlags),
	}
}

// Disconnect closes the broker connection after flushing in-flight messages.
func (c *Client) Disconnect() {
	if client, ok := c.transport.(paho.Client); ok {
		client.Disconnect(250)
	}
}

// Publish sends one retained message, retrying with exponential backoff when
// the broker is unreachable or the publish fails. It reports whether the
// message was accepted within the attempt budget.
func (c *Client) Publish(topic, payload string) bool {
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			publishRetries.Inc()
		}
		if c.publishOnce(topic, payload) {
			publishesTotal.Inc()
			return true
		}
		if attempt < c.retries-1 {
			time.Sleep(c.baseDelay << uint(attempt))
		}
	}
	c.logger.Printf("giving up publishing to %s after %d attempts", topic, c.retries)
	publishFailures.Inc()
	return false
}

func (c *Client) publishOnce(topic, payload string) bool {
	if !c.transport.IsConnected() {
		c.logger.Printf("broker not connected, cannot publish to %s", topic)
		return false
	}
	token := c.transport.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(10 * time.Second) {
		c.logger.Printf("publish to %s timed out", topic)
		return false
	}
	if err := token.Error(); err != nil {
		c.logger.Printf("publish to %s failed: %v", topic, err)
		return false
	}
	return true
}
