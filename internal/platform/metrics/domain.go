package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Diagnosis outcomes.
const (
	OutcomeMatch   = "match"
	OutcomeNoMatch = "no_match"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// DiagnosisMetrics tracks matching engine runs. A nil receiver records nothing.
type DiagnosisMetrics struct {
	Outcomes         *prometheus.CounterVec
	Confidence       prometheus.Histogram
	Duration         prometheus.Histogram
	RulesEvaluated   prometheus.Histogram
	CandidatesPerRun prometheus.Histogram
}

func NewDiagnosisMetrics(registry *prometheus.Registry) (*DiagnosisMetrics, error) {
	m := &DiagnosisMetrics{
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gastrodx_diagnoses_total",
				Help: "Diagnosis attempts by outcome",
			},
			[]string{"outcome"}, // match, no_match, invalid, error
		),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gastrodx_diagnosis_confidence_percent",
			Help:    "Confidence score of the best matching rule",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gastrodx_diagnosis_duration_seconds",
			Help:    "Time to load rules, score and rank one selection",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RulesEvaluated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gastrodx_diagnosis_rules_evaluated",
			Help:    "Number of rules scored per diagnosis",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		CandidatesPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gastrodx_diagnosis_candidates",
			Help:    "Number of qualifying rules per diagnosis",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register diagnosis metrics: %w", err)
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *DiagnosisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Outcomes.Describe(ch)
	m.Confidence.Describe(ch)
	m.Duration.Describe(ch)
	m.RulesEvaluated.Describe(ch)
	m.CandidatesPerRun.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DiagnosisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Outcomes.Collect(ch)
	m.Confidence.Collect(ch)
	m.Duration.Collect(ch)
	m.RulesEvaluated.Collect(ch)
	m.CandidatesPerRun.Collect(ch)
}

func (m *DiagnosisMetrics) RecordOutcome(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

func (m *DiagnosisMetrics) RecordScoring(rules, candidates int) {
	if m == nil {
		return
	}
	m.RulesEvaluated.Observe(float64(rules))
	m.CandidatesPerRun.Observe(float64(candidates))
}

func (m *DiagnosisMetrics) RecordConfidence(confidence float64) {
	if m == nil {
		return
	}
	m.Confidence.Observe(confidence)
}

// ConsultationMetrics tracks the consultation log. A nil receiver records nothing.
type ConsultationMetrics struct {
	Writes *prometheus.CounterVec
}

func NewConsultationMetrics(registry *prometheus.Registry) (*ConsultationMetrics, error) {
	m := &ConsultationMetrics{
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gastrodx_consultation_writes_total",
				Help: "Consultation log writes by operation and status",
			},
			[]string{"operation", "status"}, // operation: record, delete; status: ok, not_found, error
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register consultation metrics: %w", err)
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *ConsultationMetrics) Describe(ch chan<- *prometheus.Desc) { m.Writes.Describe(ch) }

// Collect implements the prometheus.Collector interface.
func (m *ConsultationMetrics) Collect(ch chan<- prometheus.Metric) { m.Writes.Collect(ch) }

func (m *ConsultationMetrics) RecordWrite(operation, status string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(operation, status).Inc()
}

// RuleMetrics tracks rule administration. A nil receiver records nothing.
type RuleMetrics struct {
	Changes *prometheus.CounterVec
}

func NewRuleMetrics(registry *prometheus.Registry) (*RuleMetrics, error) {
	m := &RuleMetrics{
		Changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gastrodx_rule_changes_total",
				Help: "Rule administration operations by action and status",
			},
			[]string{"action", "status"}, // action: create, delete, unlink
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register rule metrics: %w", err)
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *RuleMetrics) Describe(ch chan<- *prometheus.Desc) { m.Changes.Describe(ch) }

// Collect implements the prometheus.Collector interface.
func (m *RuleMetrics) Collect(ch chan<- prometheus.Metric) { m.Changes.Collect(ch) }

func (m *RuleMetrics) RecordChange(action, status string) {
	if m == nil {
		return
	}
	m.Changes.WithLabelValues(action, status).Inc()
}
