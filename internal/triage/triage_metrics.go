package triage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaenox/reality-filter-bot/internal/classifier"
)

const (
	decisionDelivered = "delivered"
	decisionDeferred  = "deferred"

	errKindEmpty       = "empty_message"
	errKindPersistence = "persistence"
)

// Metrics holds Prometheus metrics for the triage service. A nil *Metrics
// records nothing.
type Metrics struct {
	MessagesTotal  *prometheus.CounterVec
	DecisionsTotal *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	UrgencyScore   prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_messages_total",
			Help: "Classified messages by category.",
		}, []string{"category"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_decisions_total",
			Help: "Triage decisions by outcome.",
		}, []string{"decision"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_errors_total",
			Help: "Failed triage calls by error kind.",
		}, []string{"kind"}),
		UrgencyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_urgency_score",
			Help:    "Urgency score of classified messages.",
			Buckets: prometheus.LinearBuckets(0, 5, 5), // 0, 5, 10, 15, 20
		}),
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.DecisionsTotal,
		m.ErrorsTotal,
		m.UrgencyScore,
	)

	return m
}

func (m *Metrics) observeClassified(res classifier.Result) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(string(res.Category)).Inc()
	m.UrgencyScore.Observe(float64(res.Score))
}

func (m *Metrics) observeDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) observeError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
