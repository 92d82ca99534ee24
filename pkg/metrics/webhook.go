package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records payment webhook and delivery outcomes.
type WebhookMetrics struct {
	events     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment webhook events by outcome.",
	}, []string{"outcome"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_deliveries_total",
		Help: "Report delivery attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(events, deliveries)
	return &WebhookMetrics{
		events:     events,
		deliveries: deliveries,
	}
}

// IncEvent increments the webhook event counter for the given outcome.
func (m *WebhookMetrics) IncEvent(outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDelivery increments the delivery counter for the given outcome.
func (m *WebhookMetrics) IncDelivery(outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" {
		return "unknown"
	}
	return strings.ReplaceAll(v, " ", "_")
}
