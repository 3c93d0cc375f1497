package workflow

import (
	"strings"
	"time"
)

// EntityType is the entity store type under which instances persist.
const EntityType = "workflow"

// Entity store types for the domain records linked from a workflow.
const (
	EntityTypeServiceRequest    = "service_request"
	EntityTypeInspection        = "inspection"
	EntityTypeEquipmentPlan     = "equipment_plan"
	EntityTypeProtocolExecution = "protocol_execution"
	EntityTypeReport            = "report"
)

// Status represents the lifecycle of a workflow instance.
type Status string

const (
	StatusInitiated        Status = "initiated"
	StatusInProgress       Status = "in_progress"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusOnHold           Status = "on_hold"
	StatusRejected         Status = "rejected"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

var allStatuses = []Status{
	StatusInitiated,
	StatusInProgress,
	StatusAwaitingApproval,
	StatusOnHold,
	StatusRejected,
	StatusCompleted,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Stage is one of the ordered phases a workflow passes through.
type Stage string

const (
	StageServiceRequest     Stage = "service_request"
	StageIncomingInspection Stage = "incoming_inspection"
	StageEquipmentPlanning  Stage = "equipment_planning"
	StageProtocolExecution  Stage = "protocol_execution"
	StageAnalysis           Stage = "analysis"
	StageReportGeneration   Stage = "report_generation"
	StageCompleted          Stage = "completed"
)

// stageOrder is the fixed directed path every workflow follows.
var stageOrder = []Stage{
	StageServiceRequest,
	StageIncomingInspection,
	StageEquipmentPlanning,
	StageProtocolExecution,
	StageAnalysis,
	StageReportGeneration,
	StageCompleted,
}

// nextStage is the transition table: the allowed graph as data. No stage is
// ever skipped or revisited.
var nextStage = func() map[Stage]Stage {
	table := make(map[Stage]Stage, len(stageOrder)-1)
	for i := 0; i < len(stageOrder)-1; i++ {
		table[stageOrder[i]] = stageOrder[i+1]
	}
	return table
}()

// progressByStage computes the derived progress percentage per current stage.
var progressByStage = map[Stage]int{
	StageServiceRequest:     10,
	StageIncomingInspection: 20,
	StageEquipmentPlanning:  30,
	StageProtocolExecution:  50,
	StageAnalysis:           70,
	StageReportGeneration:   90,
	StageCompleted:          100,
}

// Stages returns the ordered list of workflow stages.
func Stages() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// Next returns the stage that follows s on the fixed path.
func (s Stage) Next() (Stage, bool) {
	next, ok := nextStage[s]
	return next, ok
}

// Progress returns the derived progress percentage for the stage.
func (s Stage) Progress() int {
	return progressByStage[s]
}

// DisplayName returns the human-readable stage label.
func (s Stage) DisplayName() string {
	switch s {
	case StageServiceRequest:
		return "Service Request"
	case StageIncomingInspection:
		return "Incoming Inspection"
	case StageEquipmentPlanning:
		return "Equipment Planning"
	case StageProtocolExecution:
		return "Protocol Execution"
	case StageAnalysis:
		return "Analysis"
	case StageReportGeneration:
		return "Report Generation"
	case StageCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == normalized {
			return stage, true
		}
	}
	return "", false
}

// HistoryEntry is one append-only record of a stage or status change.
type HistoryEntry struct {
	Stage     Stage     `json:"stage"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// DataLinks maps logical roles to the entity identifiers created per stage.
// Scalar links are set exactly once; list links accumulate.
type DataLinks struct {
	ServiceRequestID     string   `json:"service_request_id,omitempty"`
	InspectionID         string   `json:"inspection_id,omitempty"`
	PlanningID           string   `json:"planning_id,omitempty"`
	ProtocolExecutionIDs []string `json:"protocol_execution_ids,omitempty"`
	ReportIDs            []string `json:"report_ids,omitempty"`
}

// Metadata holds the write-once initiation attributes of a workflow.
type Metadata struct {
	Priority  string   `json:"priority"`
	Protocols []string `json:"protocols,omitempty"`
	Requester string   `json:"requester,omitempty"`
}

// Instance is the stateful record tracking one job's progress through stages.
type Instance struct {
	WorkflowID   string         `json:"workflow_id"`
	Status       Status         `json:"status"`
	CurrentStage Stage          `json:"current_stage"`
	StageHistory []HistoryEntry `json:"stage_history"`
	DataLinks    DataLinks      `json:"data_links"`
	Metadata     Metadata       `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`

	// Version is the entity store's optimistic token, refreshed on load.
	Version int64 `json:"-"`
}

// Progress returns the derived progress percentage for the instance.
func (i *Instance) Progress() int {
	return i.CurrentStage.Progress()
}

// ServiceRequest is the completed, already-approved request a workflow is
// initiated from.
type ServiceRequest struct {
	ServiceRequestID string         `json:"service_request_id"`
	Requester        string         `json:"requester,omitempty"`
	Priority         string         `json:"priority,omitempty"`
	Protocols        []string       `json:"protocols,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// Snapshot is the derived status view served to callers.
type Snapshot struct {
	WorkflowID         string         `json:"workflow_id"`
	Status             Status         `json:"status"`
	CurrentStage       Stage          `json:"current_stage"`
	ProgressPercentage int            `json:"progress_percentage"`
	DataLinks          DataLinks      `json:"data_links"`
	StageHistory       []HistoryEntry `json:"stage_history"`
}
