// Package metrics provides the Prometheus metrics of the route and status
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cellroute"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Chain access
	LogQueries     *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	Simulations    *prometheus.CounterVec

	// Tracker
	Resolutions    *prometheus.CounterVec
	SwapsFinished  *prometheus.CounterVec
	SwapsTracked   prometheus.Counter
	PendingSwaps   prometheus.Gauge
	ChainHead      *prometheus.GaugeVec
	ResolveLatency *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LogQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "log_queries_total",
			Help:      "Total number of eth_getLogs chunk queries by chain and result",
		}, []string{"chain", "result"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "log_search_duration_seconds",
			Help:      "Duration of a batched log search in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
		Simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "simulations_total",
			Help:      "Total number of cell route simulations by chain and result",
		}, []string{"chain", "result"}),

		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "resolutions_total",
			Help:      "Total number of hop and destination resolution attempts by chain and result",
		}, []string{"chain", "result"}),
		SwapsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "swaps_finished_total",
			Help:      "Total number of swaps that reached a terminal status",
		}, []string{"status"}),
		SwapsTracked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "swaps_tracked_total",
			Help:      "Total number of swaps handed to the tracker",
		}),
		PendingSwaps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "pending_swaps",
			Help:      "Number of swaps not yet in a terminal status",
		}),
		ChainHead: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "chain_head",
			Help:      "Latest block seen per chain",
		}, []string{"chain"}),
		ResolveLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of a single hop or destination resolution in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordLogQuery(chain, result string) {
	if m == nil {
		return
	}
	m.LogQueries.WithLabelValues(chain, result).Inc()
}

func (m *Metrics) RecordSearch(chain string, seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(chain).Observe(seconds)
}

func (m *Metrics) RecordSimulation(chain, result string) {
	if m == nil {
		return
	}
	m.Simulations.WithLabelValues(chain, result).Inc()
}

// RecordResolution records one resolution attempt and its latency.
func (m *Metrics) RecordResolution(chain, result string, seconds float64) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(chain, result).Inc()
	m.ResolveLatency.WithLabelValues(chain).Observe(seconds)
}

func (m *Metrics) RecordTracked() {
	if m == nil {
		return
	}
	m.SwapsTracked.Inc()
}

func (m *Metrics) RecordFinished(status string) {
	if m == nil {
		return
	}
	m.SwapsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingSwaps.Set(float64(n))
}

func (m *Metrics) SetChainHead(chain string, block uint64) {
	if m == nil {
		return
	}
	m.ChainHead.WithLabelValues(chain).Set(float64(block))
}
