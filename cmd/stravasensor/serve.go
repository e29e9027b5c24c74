package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"example.com/stravasensor/internal/config"
	"example.com/stravasensor/internal/mqtt"
	httptransport "example.com/stravasensor/internal/transport/http"
	"example.com/stravasensor/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook gateway and keep the Strava push subscription alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		return serve(cfg)
	},
}

func serve(cfg config.Config) error {
	registry := buildRegistry(cfg)

	mqttClient, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTUsername, cfg.MQTTPassword,
		cfg.MQTTPublishRetries, cfg.MQTTPublishBaseDelay)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect()

	publisher := mqtt.NewPublisher(mqttClient, cfg.DiscoveryPrefix, cfg.StateTopicPrefix)
	processor := webhook.NewProcessor(registry, publisher, 5*time.Minute)

	manager := newSubscriptionManager(cfg)
	handler := webhook.NewHandler(manager, processor, cfg.StravaClientSecret)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok subscription=%d", manager.SubscriptionID())
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address: cfg.HTTPAddress,
	}, mux)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("strava-sensor listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// The subscription is registered after the listener is up because Strava
	// validates the callback URL synchronously during creation.
	subscriptionCtx, cancelSubscription := context.WithTimeout(context.Background(), time.Minute)
	id, err := manager.EnsureSubscription(subscriptionCtx)
	cancelSubscription()
	if err != nil {
		return fmt.Errorf("failed to establish push subscription: %w", err)
	}
	log.Printf("push subscription %d active", id)

	select {
	case err := <-serverErr:
		return err
	case <-shutdownCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := manager.DeleteSubscription(shutdownCtx); err != nil {
		log.Printf("failed to delete push subscription: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	handler.Wait()
	return nil
}
