// Package metrics exposes Prometheus counters and histograms for outbound
// deliveries and inbound webhook ingestion.
package metrics

import (
	"net/http"
	"time"

	"clearway-webhooks/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements ports.Metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	inboundTotal     *prometheus.CounterVec
}

// New registers the webhook collectors, plus the Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_deliveries_total",
				Help: "Outbound webhook deliveries by event type and outcome",
			},
			[]string{"event_type", "status"},
		),
		deliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webhook_delivery_duration_seconds",
				Help:    "Time spent on one outbound delivery attempt, from signing to the remote response",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"event_type", "status"},
		),
		inboundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbound_webhooks_total",
				Help: "Inbound partner webhooks by partner and outcome",
			},
			[]string{"partner", "outcome"},
		),
	}
}

func (m *Metrics) ObserveDelivery(eventType string, status domain.DeliveryStatus, elapsed time.Duration) {
	m.deliveriesTotal.WithLabelValues(eventType, string(status)).Inc()
	m.deliveryDuration.WithLabelValues(eventType, string(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) IncInbound(partner string, outcome string) {
	m.inboundTotal.WithLabelValues(partner, outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
