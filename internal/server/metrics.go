package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics are registered on a private registry so tests can build many servers.
type Metrics struct {
	Registry *prometheus.Registry

	lookups        *prometheus.CounterVec
	questions      *prometheus.CounterVec
	answerDuration prometheus.Histogram
	activeSessions prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoroute_lookups_total",
				Help: "Emission lookups and comparisons by outcome",
			},
			[]string{"kind", "result"},
		),
		questions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoroute_questions_total",
				Help: "Questions answered by outcome",
			},
			[]string{"result"},
		),
		answerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ecoroute_answer_duration_seconds",
				Help:    "Time spent retrieving context and waiting for the model",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ecoroute_sessions_active",
				Help: "Live chat sessions",
			},
		),
	}
	m.Registry.MustRegister(
		m.lookups,
		m.questions,
		m.answerDuration,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
