package mqtt

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type stubToken struct {
	err error
}

func (t *stubToken) Wait() bool                     { return true }
func (t *stubToken) WaitTimeout(time.Duration) bool { return true }
func (t *stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *stubToken) Error() error { return t.err }

type publishCall struct {
	topic    string
	retained bool
	payload  string
}

type stubTransport struct {
	connected bool
	failures  int
	calls     []publishCall
}

func (s *stubTransport) IsConnected() bool { return s.connected }

func (s *stubTransport) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	s.calls = append(s.calls, publishCall{topic: topic, retained: retained, payload: payload.(string)})
	if s.failures > 0 {
		s.failures--
		return &stubToken{err: errors.New("broker unavailable")}
	}
	return &stubToken{}
}

func TestPublishSucceedsFirstAttempt(t *testing.T) {
	transport := &stubTransport{connected: true}
	client := newClient(transport, 3, time.Millisecond)

	require.True(t, client.Publish("strava_sensor/98765/state", `{"battery_status":"good"}`))
	require.Len(t, transport.calls, 1)
	require.True(t, transport.calls[0].retained)
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	transport := &stubTransport{connected: true, failures: 2}
	client := newClient(transport, 3, time.Millisecond)

	require.True(t, client.Publish("topic", "payload"))
	require.Len(t, transport.calls, 3)
}

func TestPublishBacksOffBetweenAttempts(t *testing.T) {
	baseDelay := 20 * time.Millisecond
	transport := &stubTransport{connected: true, failures: 2}
	client := newClient(transport, 3, baseDelay)

	start := time.Now()
	require.True(t, client.Publish("topic", "payload"))
	elapsed := time.Since(start)

	// baseDelay after the first failure, doubled after the second: the third
	// attempt cannot start before baseDelay*3 has passed.
	require.GreaterOrEqual(t, elapsed, 3*baseDelay)
	require.Len(t, transport.calls, 3)
}

func TestPublishGivesUpAfterRetryBudget(t *testing.T) {
	transport := &stubTransport{connected: true, failures: 10}
	client := newClient(transport, 3, time.Millisecond)

	require.False(t, client.Publish("topic", "payload"))
	require.Len(t, transport.calls, 3)
}

func TestPublishSkipsAttemptsWhileDisconnected(t *testing.T) {
	transport := &stubTransport{connected: false}
	client := newClient(transport, 3, time.Millisecond)

	require.False(t, client.Publish("topic", "payload"))
	require.Empty(t, transport.calls)
}
