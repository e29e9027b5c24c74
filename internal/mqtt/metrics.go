package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	publishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sensor",
		Subsystem: "mqtt",
		Name:      "publishes_total",
		Help:      "Number of messages accepted by the broker.",
	})

	publishRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sensor",
		Subsystem: "mqtt",
		Name:      "publish_retries_total",
		Help:      "Number of publish attempts beyond the first.",
	})

	publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sensor",
		Subsystem: "mqtt",
		Name:      "publish_failures_total",
		Help:      "Number of messages dropped after exhausting retries.",
	})
)

func init() {
	prometheus.MustRegister(publishesTotal, publishRetries, publishFailures)
}
