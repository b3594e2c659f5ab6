package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Marketplace records webhook, provider and checkout outcomes.
type Marketplace struct {
	webhooks *prometheus.CounterVec
	provider *prometheus.HistogramVec
	checkout *prometheus.CounterVec
}

// NewMarketplace registers the marketplace metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewMarketplace(reg prometheus.Registerer) *Marketplace {
	if reg == nil {
		return &Marketplace{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_webhook_events_total",
		Help: "Inbound provider webhooks by provider and outcome.",
	}, []string{"provider", "outcome"})
	provider := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_provider_call_duration_seconds",
		Help:    "Latency of outbound payment and carrier calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation", "result"})
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_checkout_total",
		Help: "Checkout initiations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(webhooks, provider, checkout)
	return &Marketplace{
		webhooks: webhooks,
		provider: provider,
		checkout: checkout,
	}
}

// IncWebhook counts one webhook delivery.
func (m *Marketplace) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records an outbound call. err only selects the result label.
func (m *Marketplace) ObserveProviderCall(provider, operation string, started time.Time, err error) {
	if m == nil || m.provider == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.provider.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation), result).
		Observe(time.Since(started).Seconds())
}

func (m *Marketplace) IncCheckout(outcome string) {
	if m == nil || m.checkout == nil {
		return
	}
	m.checkout.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
