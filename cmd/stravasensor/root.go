package main

import (
	"github.com/spf13/cobra"

	"example.com/stravasensor/internal/config"
	"example.com/stravasensor/internal/garmin"
	"example.com/stravasensor/internal/retry"
	"example.com/stravasensor/internal/source"
	"example.com/stravasensor/internal/strava"
)

var rootCmd = &cobra.Command{
	Use:           "stravasensor",
	Short:         "Publish cycling device battery status from activity uploads to Home Assistant",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(parseCmd, serveCmd, subscriptionCmd)
}

// buildRegistry wires the activity sources in resolution order. The Strava
// source delegates payload reads to the sources registered before it.
func buildRegistry(cfg config.Config) *source.Registry {
	garminClient := garmin.NewClient(cfg.GarminUsername, cfg.GarminPassword, cfg.GarminTokenFile)
	stravaClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret, cfg.StravaRefreshToken)

	var registry *source.Registry
	stravaSource := source.NewStravaSource(stravaClient, func() []source.Source {
		return registry.Sources()
	})
	registry = source.NewRegistry(
		source.NewFileSource(),
		source.NewGarminSource(garminClient),
		stravaSource,
	)
	return registry
}

func newSubscriptionManager(cfg config.Config) *strava.SubscriptionManager {
	return strava.NewSubscriptionManager(
		cfg.StravaClientID,
		cfg.StravaClientSecret,
		cfg.StravaCallbackURL,
		cfg.StravaVerifyToken,
		retry.Policy{Attempts: cfg.SubscriptionRetries, BaseDelay: cfg.SubscriptionDelay},
	)
}
