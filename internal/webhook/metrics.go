package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strava_sensor",
		Subsystem: "webhook",
		Name:      "events_received_total",
		Help:      "Number of accepted push event deliveries by object and aspect type.",
	}, []string{"object_type", "aspect_type"})

	eventsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sensor",
		Subsystem: "webhook",
		Name:      "events_processed_total",
		Help:      "Number of activity creations processed to completion.",
	})

	eventsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sensor",
		Subsystem: "webhook",
		Name:      "events_failed_total",
		Help:      "Number of activity creations whose processing failed.",
	})
)

func init() {
	prometheus.MustRegister(eventsReceived, eventsProcessed, eventsFailed)
}
