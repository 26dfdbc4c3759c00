package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the site counters on their own registry.
type Metrics struct {
	registry          *prometheus.Registry
	calculatorActions *prometheus.CounterVec
	saveOutcomes      *prometheus.CounterVec
	contactRequests   *prometheus.CounterVec
}

// New creates the counters and registers them together with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calculatorActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labsite",
			Name:      "calculator_actions_total",
			Help:      "Calculator mutations by action.",
		}, []string{"action"}),
		saveOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labsite",
			Name:      "calculation_saves_total",
			Help:      "Calculation save attempts by outcome.",
		}, []string{"outcome"}),
		contactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labsite",
			Name:      "contact_requests_total",
			Help:      "Contact form submissions by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.calculatorActions,
		m.saveOutcomes,
		m.contactRequests,
	)
	return m
}

func (m *Metrics) CalculatorAction(action string) {
	m.calculatorActions.WithLabelValues(action).Inc()
}

func (m *Metrics) SaveOutcome(outcome string) {
	m.saveOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ContactRequest(result string) {
	m.contactRequests.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
