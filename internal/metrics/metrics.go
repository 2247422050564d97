package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal counts local user mutations sent to the remote store.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planing_mutations_total",
		Help: "Local mutations issued to the remote store, by collection.",
	}, []string{"collection"})

	// ReloadsTotal counts full collection reloads.
	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planing_reloads_total",
		Help: "Full authoritative reloads, by collection.",
	}, []string{"collection"})

	// FeedEventsTotal counts change-feed events received.
	FeedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planing_feed_events_total",
		Help: "Change-feed events received, by collection.",
	}, []string{"collection"})

	// NotificationsShownTotal counts notifications rendered on this device.
	NotificationsShownTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planing_notifications_shown_total",
		Help: "Push notifications rendered on this device.",
	})

	// RemoteErrorsTotal counts failed remote store calls.
	RemoteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planing_remote_errors_total",
		Help: "Remote store calls that failed.",
	})
)
