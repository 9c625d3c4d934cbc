// Package metrics holds the prometheus collectors of the state reader.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "cloudstate"
)

var (
	// Refreshes counts snapshot refreshes
	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Total number of cluster state refreshes",
		},
		[]string{"trigger", "kind", "result"}, // trigger: bootstrap/reconnect/manual/scheduled/watch, kind: full/live_nodes, result: ok/transient/error
	)

	// WatchFires counts watch notifications
	WatchFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_fires_total",
			Help:      "Total number of watch notifications received",
		},
		[]string{"watch"},
	)

	// Retries counts retried coordination operations
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of coordination operations retried after a transient failure",
		},
		[]string{"op"},
	)

	// LiveNodes tracks the live node count of the current snapshot
	LiveNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_nodes",
			Help:      "Number of live nodes in the current snapshot",
		},
	)

	// Collections tracks the collection count of the current snapshot
	Collections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collections",
			Help:      "Number of collections in the current snapshot",
		},
	)

	// RefreshPending is 1 while a delayed refresh is scheduled
	RefreshPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_pending",
			Help:      "Whether a delayed refresh is scheduled",
		},
	)

	// LeaderLookup measures leader resolution latency
	LeaderLookup = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leader_lookup_seconds",
			Help:      "Leader resolution latency in seconds",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 15, 30, 60},
		},
		[]string{"result"}, // found/not_found/interrupted
	)
)

// SetPending records whether a delayed refresh is scheduled
func SetPending(pending bool) {
	if pending {
		RefreshPending.Set(1)
		return
	}
	RefreshPending.Set(0)
}

// RecordRefresh counts one refresh
func RecordRefresh(trigger, kind, result string) {
	Refreshes.WithLabelValues(trigger, kind, result).Inc()
}

// ObserveSnapshot records the size of a newly published snapshot
func ObserveSnapshot(liveNodes, collections int) {
	LiveNodes.Set(float64(liveNodes))
	Collections.Set(float64(collections))
}
