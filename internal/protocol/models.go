package protocol

import (
	"time"
)

// EntityType is the entity store type for protocol execution records.
const EntityType = "protocol_execution"

// State is one phase of a single protocol run.
type State string

const (
	StateDraft           State = "draft"
	StateInProgress      State = "in_progress"
	StateDataAcquisition State = "data_acquisition"
	StateAnalysis        State = "analysis"
	StateValidation      State = "validation"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

// IsTerminal reports whether no further phase may run.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Severity classifies a validation finding. Only critical findings fail the
// run; everything else is recorded and surfaced in the summary.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Fatal reports whether a finding of this severity forces the run to fail.
func (s Severity) Fatal() bool {
	return s == SeverityCritical
}

// Measurement is a single acquired data point.
type Measurement struct {
	Name       string    `json:"name"`
	Value      any       `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Finding is a validation result attached to the run.
type Finding struct {
	Severity Severity `json:"severity"`
	Check    string   `json:"check"`
	Message  string   `json:"message"`
}

// StateChange is one entry in the run's phase history.
type StateChange struct {
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Record is the durable protocol execution record. It is created when a
// protocol is dispatched, appended to while phases run, and never deleted.
type Record struct {
	ExecutionID  string         `json:"execution_id"`
	ProtocolID   string         `json:"protocol_id"`
	WorkflowID   string         `json:"workflow_id,omitempty"`
	State        State          `json:"state"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Measurements []Measurement  `json:"measurements,omitempty"`
	Findings     []Finding      `json:"findings,omitempty"`
	Results      map[string]any `json:"results,omitempty"`
	Report       map[string]any `json:"report,omitempty"`
	PassFail     string         `json:"pass_fail,omitempty"`

	StateHistory []StateChange `json:"state_history"`

	Version int64 `json:"-"`
}

// WorstSeverity returns the highest severity among the run's findings, or an
// empty severity when there are none.
func (r *Record) WorstSeverity() Severity {
	rank := map[Severity]int{
		SeverityInfo:     1,
		SeverityWarning:  2,
		SeverityError:    3,
		SeverityCritical: 4,
	}
	var worst Severity
	for _, finding := range r.Findings {
		if rank[finding.Severity] > rank[worst] {
			worst = finding.Severity
		}
	}
	return worst
}
