// Package config centralises configuration parsing for the strava sensor service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures runtime configuration values for the sensor service.
type Config struct {
	HTTPAddress string

	MQTTBrokerURL        string
	MQTTUsername         string
	MQTTPassword         string
	MQTTPublishRetries   int
	MQTTPublishBaseDelay time.Duration
	DiscoveryPrefix      string // Home Assistant discovery topic prefix.
	StateTopicPrefix     string

	StravaClientID      string
	StravaClientSecret  string
	StravaRefreshToken  string
	StravaVerifyToken   string // Generated at startup when empty.
	StravaCallbackURL   string
	SubscriptionRetries int
	SubscriptionDelay   time.Duration // Base delay used for exponential backoff.

	GarminUsername  string
	GarminPassword  string
	GarminTokenFile string
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	return Config{
		HTTPAddress: getEnv("HTTP_ADDRESS", ":8080"),

		MQTTBrokerURL:        getEnv("MQTT_BROKER_URL", ""),
		MQTTUsername:         getEnv("MQTT_USERNAME", ""),
		MQTTPassword:         getEnv("MQTT_PASSWORD", ""),
		MQTTPublishRetries:   getIntEnv("MQTT_PUBLISH_RETRIES", 3),
		MQTTPublishBaseDelay: getDurationEnv("MQTT_PUBLISH_BASE_DELAY", time.Second),
		DiscoveryPrefix:      getEnv("DISCOVERY_PREFIX", "homeassistant"),
		StateTopicPrefix:     getEnv("STATE_TOPIC_PREFIX", "strava_sensor"),

		StravaClientID:      getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret:  getEnv("STRAVA_CLIENT_SECRET", ""),
		StravaRefreshToken:  getEnv("STRAVA_REFRESH_TOKEN", ""),
		StravaVerifyToken:   getEnv("STRAVA_VERIFY_TOKEN", ""),
		StravaCallbackURL:   getEnv("STRAVA_WEBHOOK_URL", ""),
		SubscriptionRetries: getIntEnv("STRAVA_SUBSCRIPTION_RETRIES", 3),
		SubscriptionDelay:   getDurationEnv("STRAVA_SUBSCRIPTION_RETRY_DELAY", time.Second),

		GarminUsername:  getEnv("GARMIN_USERNAME", ""),
		GarminPassword:  getEnv("GARMIN_PASSWORD", ""),
		GarminTokenFile: getEnv("GARMIN_TOKEN_FILE", defaultTokenFile()),
	}
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".garminconnect"
	}
	return home + "/.garminconnect"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
