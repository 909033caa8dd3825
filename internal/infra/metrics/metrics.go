package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service's collectors. Construct one per process with New
// and pass it to the components that record into it.
type Metrics struct {
	CallbacksTotal       *prometheus.CounterVec
	LaunchesTotal        *prometheus.CounterVec
	ProviderRequests     *prometheus.CounterVec
	ProviderLatency      *prometheus.HistogramVec
	LedgerLockRetries    prometheus.Counter
	LedgerLockContention prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "providerwallet_callbacks_total",
				Help: "Provider callbacks processed, by message kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		LaunchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "providerwallet_game_launches_total",
				Help: "Game launch attempts by outcome",
			},
			[]string{"outcome"},
		),
		ProviderRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "providerwallet_provider_requests_total",
				Help: "Outbound provider HTTP calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		ProviderLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "providerwallet_provider_request_duration_seconds",
				Help:    "Outbound provider HTTP call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		LedgerLockRetries: f.NewCounter(
			prometheus.CounterOpts{
				Name: "providerwallet_ledger_lock_retries_total",
				Help: "Wallet mutations retried after a lock timeout or deadlock",
			},
		),
		LedgerLockContention: f.NewCounter(
			prometheus.CounterOpts{
				Name: "providerwallet_ledger_lock_contention_total",
				Help: "Wallet mutations abandoned after exhausting lock retries",
			},
		),
	}
}

// NewNop returns collectors bound to a throwaway registry, for tests and tools.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) RecordCallback(kind, outcome string) {
	m.CallbacksTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordLaunch(outcome string) {
	m.LaunchesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordProviderRequest(endpoint, outcome string, seconds float64) {
	m.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
	m.ProviderLatency.WithLabelValues(endpoint).Observe(seconds)
}
