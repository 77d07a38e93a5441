package metrics

import (
	"strconv"

	"github.com/koustreak/quizmeet/internal/outcome"
	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeMetrics counts translated storage outcomes by status code.
type OutcomeMetrics struct {
	Total *prometheus.CounterVec
}

// NewOutcomeMetrics creates and registers outcome metrics on the given registry.
func NewOutcomeMetrics(reg prometheus.Registerer) *OutcomeMetrics {
	m := &OutcomeMetrics{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Storage operation outcomes by operation, entity and response code.",
		}, []string{"op", "entity", "code"}),
	}

	reg.MustRegister(m.Total)
	return m
}

// Observe implements outcome.Recorder.
func (m *OutcomeMetrics) Observe(op outcome.Operation, entity string, code int) {
	m.Total.WithLabelValues(op.String(), entity, strconv.Itoa(code)).Inc()
}
