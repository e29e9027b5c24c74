package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, 3, cfg.MQTTPublishRetries)
	require.Equal(t, time.Second, cfg.MQTTPublishBaseDelay)
	require.Equal(t, "homeassistant", cfg.DiscoveryPrefix)
	require.Equal(t, "strava_sensor", cfg.StateTopicPrefix)
	require.Equal(t, 3, cfg.SubscriptionRetries)
	require.NotEmpty(t, cfg.GarminTokenFile)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9999")
	t.Setenv("MQTT_PUBLISH_RETRIES", "5")
	t.Setenv("MQTT_PUBLISH_BASE_DELAY", "250ms")
	t.Setenv("STRAVA_VERIFY_TOKEN", "tok")
	t.Setenv("STRAVA_SUBSCRIPTION_RETRY_DELAY", "2s")

	cfg := Load()

	require.Equal(t, ":9999", cfg.HTTPAddress)
	require.Equal(t, 5, cfg.MQTTPublishRetries)
	require.Equal(t, 250*time.Millisecond, cfg.MQTTPublishBaseDelay)
	require.Equal(t, "tok", cfg.StravaVerifyToken)
	require.Equal(t, 2*time.Second, cfg.SubscriptionDelay)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_RETRIES", "lots")
	t.Setenv("MQTT_PUBLISH_BASE_DELAY", "soon")

	cfg := Load()

	require.Equal(t, 3, cfg.MQTTPublishRetries)
	require.Equal(t, time.Second, cfg.MQTTPublishBaseDelay)
}
