package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the quiz bot.
type Metrics struct {
	Turns           *prometheus.CounterVec
	TurnDuration    *prometheus.HistogramVec
	CorpusQuestions prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quizbot",
				Name:      "turns_total",
				Help:      "Total number of handled conversation turns",
			},
			[]string{"command", "outcome"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quizbot",
				Name:      "turn_duration_seconds",
				Help:      "Turn handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		CorpusQuestions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quizbot",
				Name:      "corpus_questions",
				Help:      "Number of questions in the loaded corpus",
			},
		),
	}
	reg.MustRegister(m.Turns, m.TurnDuration, m.CorpusQuestions)
	return m
}

// ObserveTurn implements app.Recorder.
func (m *Metrics) ObserveTurn(command, outcome string, elapsed time.Duration) {
	m.Turns.WithLabelValues(command, outcome).Inc()
	m.TurnDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}
