package scenarios

import (
	"time"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StatusAcknowledged   StepStatus = "ack"
	StatusRejected       StepStatus = "nack"
	StatusTransportError StepStatus = "transport_error"
	StatusSkipped        StepStatus = "skipped"
	StatusFailed         StepStatus = "failed"
)

// StepResult records one request and its response. A NACK is a result, not a
// failure of the run: several scenarios exist to provoke one.
type StepResult struct {
	ScenarioID     string        `json:"scenario_id"`
	Step           int           `json:"step"`
	Name           string        `json:"name"`
	Endpoint       string        `json:"endpoint"`
	Role           Role          `json:"role"`
	Auth           string        `json:"auth"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	MessageID      string        `json:"message_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Status         StepStatus    `json:"status"`
	HTTPStatus     int           `json:"http_status,omitempty"`
	Ack            string        `json:"ack,omitempty"`
	ErrorCode      string        `json:"error_code,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	TransportError string        `json:"transport_error,omitempty"`
	SkipReason     string        `json:"skip_reason,omitempty"`
	Response       string        `json:"response,omitempty"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	RunID       string        `json:"run_id"`
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Expectation string        `json:"expectation"`
	Steps       []StepResult  `json:"steps"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	TraceID     string        `json:"trace_id,omitempty"`
}

// Completed reports whether every step was sent and answered.
func (r *ScenarioResult) Completed() bool {
	for _, s := range r.Steps {
		if s.Status != StatusAcknowledged && s.Status != StatusRejected {
			return false
		}
	}
	return len(r.Steps) > 0
}

// RunReport collects the scenarios of one run.
type RunReport struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration_ns"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// Counts tallies steps by status.
func (r *RunReport) Counts() map[StepStatus]int {
	counts := make(map[StepStatus]int)
	for _, sc := range r.Scenarios {
		for _, s := range sc.Steps {
			counts[s.Status]++
		}
	}
	return counts
}
