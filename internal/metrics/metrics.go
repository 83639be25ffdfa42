package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AvailabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkspot_availability_checks_total",
			Help: "Availability decisions by reason",
		},
		[]string{"reason"}, // available, insufficient_capacity, not_found, inactive, closed, invalid, error
	)

	AvailabilityDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parkspot_availability_check_duration_seconds",
			Help:    "Duration of availability checks including the store query",
			Buckets: prometheus.DefBuckets,
		},
	)

	UniquenessRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkspot_uniqueness_rejections_total",
			Help: "Reservations rejected by the duplicate guard, by conflict type",
		},
		[]string{"type"},
	)

	ReservationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkspot_reservation_transitions_total",
			Help: "Reservation status changes by target status and origin",
		},
		[]string{"status", "source"}, // source: api, job, webhook
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkspot_api_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkspot_events_published_total",
			Help: "Reservation events published to the broker",
		},
		[]string{"type", "result"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parkspot_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

func RecordAvailability(reason string, duration time.Duration) {
	AvailabilityChecks.WithLabelValues(reason).Inc()
	AvailabilityDuration.Observe(duration.Seconds())
}

func RecordTransition(status, source string) {
	ReservationTransitions.WithLabelValues(status, source).Inc()
}

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
