// Package metrics holds the Prometheus collectors of the pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forecast_sync"

// Metrics contains all pipeline metrics.
type Metrics struct {
	BrokerRequests      *prometheus.CounterVec
	IngestResults       *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	NotifiedEntities    *prometheus.CounterVec
	SubscriptionsActive prometheus.Gauge
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		BrokerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "requests_total",
				Help:      "Context broker requests by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		IngestResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "stations_total",
				Help:      "Per-station ingestion attempts by domain, phase and outcome",
			},
			[]string{"domain", "phase", "status"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of one ingestion pass over all stations of a domain",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"domain"},
		),
		NotifiedEntities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "entities_total",
				Help:      "Notified entities by type and persistence outcome",
			},
			[]string{"entity_type", "status"},
		),
		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "active",
				Help:      "Subscriptions created by this instance",
			},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.BrokerRequests,
		m.IngestResults,
		m.CycleDuration,
		m.NotifiedEntities,
		m.SubscriptionsActive,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) BrokerRequest(operation, status string) {
	if m == nil {
		return
	}
	m.BrokerRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) IngestResult(domain, phase string, ok bool) {
	if m == nil {
		return
	}
	m.IngestResults.WithLabelValues(domain, phase, outcome(ok)).Inc()
}

func (m *Metrics) ObserveCycle(domain string, d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.WithLabelValues(domain).Observe(d.Seconds())
}

func (m *Metrics) NotifiedEntity(entityType, status string) {
	if m == nil {
		return
	}
	m.NotifiedEntities.WithLabelValues(entityType, status).Inc()
}

func (m *Metrics) SetSubscriptionsActive(n int) {
	if m == nil {
		return
	}
	m.SubscriptionsActive.Set(float64(n))
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
