package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service provides Prometheus metrics for the settlement client and sandbox
type Service struct {
	// Client Metrics
	nocsRequestsTotal        *prometheus.CounterVec
	nocsRequestDuration      *prometheus.HistogramVec
	signatureGenerationTotal prometheus.Counter
	circuitBreakerState      *prometheus.GaugeVec

	// Scenario Metrics
	scenarioStepsTotal *prometheus.CounterVec
	scenarioDuration   *prometheus.HistogramVec

	// Sandbox Metrics
	requestsTotal               *prometheus.CounterVec
	requestDuration             *prometheus.HistogramVec
	signatureVerificationsTotal *prometheus.CounterVec

	// Sink Metrics
	auditRecordsTotal     *prometheus.CounterVec
	resultsPublishedTotal *prometheus.CounterVec
}

// NewService registers the metrics on reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler, or a fresh registry in tests.
func NewService(reg prometheus.Registerer) *Service {
	factory := promauto.With(reg)

	return &Service{
		nocsRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nocs_requests_total",
				Help: "Total number of NOCS calls by endpoint and outcome (ack, nack, transport_error, circuit_open)",
			},
			[]string{"endpoint", "outcome"},
		),
		nocsRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nocs_request_duration_seconds",
				Help:    "NOCS call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		signatureGenerationTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nocs_signature_generations_total",
				Help: "Total number of Authorization headers generated",
			},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nocs_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"dependency"},
		),
		scenarioStepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nocs_scenario_steps_total",
				Help: "Total number of scenario steps by scenario and status",
			},
			[]string{"scenario", "status"},
		),
		scenarioDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nocs_scenario_duration_seconds",
				Help:    "Scenario wall time in seconds, waits included",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
			},
			[]string{"scenario"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nocs_sandbox_requests_total",
				Help: "Total number of sandbox requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nocs_sandbox_request_duration_seconds",
				Help:    "Sandbox request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),
		signatureVerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nocs_signature_verifications_total",
				Help: "Total number of inbound signature verifications by result",
			},
			[]string{"result"},
		),
		auditRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nocs_audit_records_total",
				Help: "Total number of exchange audit writes by status",
			},
			[]string{"status"},
		),
		resultsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nocs_results_published_total",
				Help: "Total number of step results published to the results stream by status",
			},
			[]string{"status"},
		),
	}
}

func (s *Service) RecordNOCSRequest(endpoint, outcome string, duration time.Duration) {
	s.nocsRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	s.nocsRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (s *Service) RecordSignatureGeneration() {
	s.signatureGenerationTotal.Inc()
}

func (s *Service) SetCircuitBreakerState(dependency string, state int) {
	s.circuitBreakerState.WithLabelValues(dependency).Set(float64(state))
}

func (s *Service) RecordScenarioStep(scenario, status string) {
	s.scenarioStepsTotal.WithLabelValues(scenario, status).Inc()
}

func (s *Service) RecordScenarioDuration(scenario string, duration time.Duration) {
	s.scenarioDuration.WithLabelValues(scenario).Observe(duration.Seconds())
}

func (s *Service) RecordRequest(endpoint, status string) {
	s.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

func (s *Service) RecordRequestDuration(endpoint, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

func (s *Service) RecordSignatureVerification(result string) {
	s.signatureVerificationsTotal.WithLabelValues(result).Inc()
}

func (s *Service) RecordAuditRecord(status string) {
	s.auditRecordsTotal.WithLabelValues(status).Inc()
}

func (s *Service) RecordResultPublished(status string) {
	s.resultsPublishedTotal.WithLabelValues(status).Inc()
}
