// Package metrics declares the Prometheus collectors for the tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanCyclesTotal counts completed scan cycles by outcome ("success" / "failure").
	ScanCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hwtracker_scan_cycles_total",
		Help: "Completed scan cycles by outcome",
	}, []string{"status"})

	// ScanDuration observes wall time of one full scan cycle.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hwtracker_scan_duration_seconds",
		Help:    "Duration of a full discovery+validation+reconciliation cycle",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// SurfaceFetchFailures counts discovery surfaces that could not be fetched.
	SurfaceFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hwtracker_surface_fetch_failures_total",
		Help: "Discovery surface fetches that failed and were skipped",
	}, []string{"surface"})

	// CandidatesDiscovered counts unique candidate URLs per discovery pass.
	CandidatesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hwtracker_candidates_discovered_total",
		Help: "Unique candidate product URLs produced by discovery",
	})

	// ValidationDrops counts candidates dropped during validation by reason
	// ("fetch", "extract", "brand").
	ValidationDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hwtracker_validation_drops_total",
		Help: "Candidates dropped before reconciliation by reason",
	}, []string{"reason"})

	// TransitionsTotal counts committed state transitions by target state.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hwtracker_transitions_total",
		Help: "Committed product state transitions by target state",
	}, []string{"to_state"})

	// NotificationsSent counts delivered alerts by kind ("NEW" / "RESTOCK").
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hwtracker_notifications_sent_total",
		Help: "Alerts delivered to the operator by kind",
	}, []string{"kind"})

	// NotificationFailures counts alert deliveries that failed.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hwtracker_notification_failures_total",
		Help: "Alert deliveries that failed (state commit unaffected)",
	})

	// TrackedProducts is the number of product rows in the store.
	TrackedProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hwtracker_tracked_products",
		Help: "Products currently tracked in the state store",
	})

	// RateLimitWaitDuration observes time spent waiting for the shared
	// request budget.
	RateLimitWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hwtracker_ratelimit_wait_seconds",
		Help:    "Time spent waiting for the shared site request budget",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// RateLimitTimeoutTotal counts rate-limit waits abandoned on cancellation.
	RateLimitTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hwtracker_ratelimit_timeouts_total",
		Help: "Rate limit waits abandoned because the context was cancelled",
	})
)
