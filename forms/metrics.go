package forms

import (
	"context"

	"formguard/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultado final de uma submissão (label "outcome").
const (
	OutcomeSuccess          = "success"
	OutcomeValidationFailed = "validation_failed"
	OutcomeHoneypot         = "honeypot"
	OutcomeInvalidBody      = "invalid_body"
	OutcomeInternalError    = "internal_error"
)

// Metrics agrupa as métricas Prometheus dos formulários.
// Um *Metrics nil é válido e não registra nada.
type Metrics struct {
	Submissions        *prometheus.CounterVec
	ForwardDuration    *prometheus.HistogramVec
	RateLimitDecisions *prometheus.CounterVec
}

// Gauges são lidos a cada scrape. Campos nil não viram métrica.
type Gauges struct {
	WindowKeys        func() float64
	WindowEntries     func() float64
	ShieldKeys        func() float64
	ForwardSlotsInUse func() float64
}

// NewMetrics registra as métricas em reg, incluindo os gauges não nil.
func NewMetrics(reg prometheus.Registerer, g Gauges) *Metrics {
	m := &Metrics{
		Submissions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formguard",
				Name:      "submissions_total",
				Help:      "Form submissions that passed the rate limiter, by final outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		ForwardDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "formguard",
				Name:      "forward_duration_seconds",
				Help:      "Time spent handing accepted submissions to the notifier",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		RateLimitDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formguard",
				Name:      "rate_limit_decisions_total",
				Help:      "Sliding window admission decisions",
			},
			[]string{"endpoint", "result"}, // result=allowed/denied
		),
	}
	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"window_keys", "Client keys currently held by the in-memory window store", g.WindowKeys},
		{"window_entries", "Admitted attempts currently held by the in-memory window store", g.WindowEntries},
		{"shield_keys", "Client keys with a token bucket in the shield", g.ShieldKeys},
		{"forward_slots_in_use", "Notifier calls running right now", g.ForwardSlotsInUse},
	}
	for _, gauge := range gauges {
		if gauge.fn == nil {
			continue
		}
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: "formguard", Name: gauge.name, Help: gauge.help},
			gauge.fn,
		)
	}
	return m
}

func (m *Metrics) submission(endpoint domain.Endpoint, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(string(endpoint), outcome).Inc()
}

func (m *Metrics) forwarded(endpoint domain.Endpoint, seconds float64) {
	if m == nil {
		return
	}
	m.ForwardDuration.WithLabelValues(string(endpoint)).Observe(seconds)
}

// Record implementa domain.StatsStore para as decisões do rate limiter.
func (m *Metrics) Record(_ context.Context, ev domain.StatsEvent) error {
	if m == nil {
		return nil
	}
	result := "denied"
	if ev.Allowed {
		result = "allowed"
	}
	m.RateLimitDecisions.WithLabelValues(string(ev.Endpoint), result).Inc()
	return nil
}
