package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "liveserve"

// Live-reload client metrics
var (
	// ConnectedClients tracks currently registered push-channel clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Number of live-reload clients currently connected",
		},
	)

	// ClientConnectionsTotal counts push-channel registrations
	ClientConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_connections_total",
			Help:      "Total live-reload client registrations",
		},
	)

	// MessagesPublishedTotal counts broadcasts by message kind
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total reload messages broadcast by kind",
		},
		[]string{"kind"},
	)

	// PushFailuresTotal counts clients pruned after a failed push
	PushFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Total pushes that failed and pruned a client",
		},
	)
)

// Watcher metrics
var (
	// WatchEventsTotal counts debounced file events by kind
	WatchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Total debounced file-system events by kind",
		},
		[]string{"kind"},
	)

	// WatcherUp is 1 while file watching is active
	WatcherUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watcher_up",
			Help:      "Whether file watching is active (1) or degraded (0)",
		},
	)
)

// HTTP metrics
var (
	// StaticRequestsTotal counts static responses by outcome
	StaticRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "static_requests_total",
			Help:      "Total static file requests by outcome (file, fallback, not_found, forbidden, error)",
		},
		[]string{"outcome"},
	)

	// StaticRequestDuration tracks time spent serving static files
	StaticRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "static_request_duration_seconds",
			Help:      "Static file request duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
)

// Handler serves the default registry, which promauto registers into.
func Handler() http.Handler {
	return promhttp.Handler()
}
