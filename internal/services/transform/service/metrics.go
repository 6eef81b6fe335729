package service

import (
	"time"

	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
	"narrative/internal/services/transform/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as the "outcome" label
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics are the transform service collectors
type Metrics struct {
	Requests    *prometheus.CounterVec
	Decisions   *prometheus.CounterVec
	Quarantines prometheus.Counter
	Reloads     *prometheus.CounterVec
	Duration    prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg.
// A nil reg yields working but unregistered collectors
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "narrative",
			Subsystem: "transform",
			Name:      "requests_total",
			Help:      "Transformation requests by outcome.",
		}, []string{"outcome"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "narrative",
			Subsystem: "transform",
			Name:      "decisions_total",
			Help:      "Ledger decisions by action.",
		}, []string{"action"}),
		Quarantines: f.NewCounter(prometheus.CounterOpts{
			Namespace: "narrative",
			Subsystem: "transform",
			Name:      "quarantines_total",
			Help:      "Statements excluded from the output by a quarantine rule.",
		}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "narrative",
			Subsystem: "rulepack",
			Name:      "reloads_total",
			Help:      "Rule set reload attempts by result.",
		}, []string{"result"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "narrative",
			Subsystem: "transform",
			Name:      "request_duration_seconds",
			Help:      "Wall time of one transformation request.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

func (m *Metrics) observe(res *domain.Result, err error, took time.Duration) {
	m.Duration.Observe(took.Seconds())
	switch {
	case perr.IsCode(err, perr.ErrorCodeTimeout):
		m.Requests.WithLabelValues(OutcomeTimeout).Inc()
		return
	case err != nil:
		m.Requests.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.Requests.WithLabelValues(OutcomeOK).Inc()
	for _, d := range res.Decisions {
		m.Decisions.WithLabelValues(string(d.Action)).Inc()
		if d.Action == rulepack.ActionQuarantine {
			m.Quarantines.Inc()
		}
	}
}

func (m *Metrics) reload(err error) {
	if err != nil {
		m.Reloads.WithLabelValues("rejected").Inc()
		return
	}
	m.Reloads.WithLabelValues("ok").Inc()
}
