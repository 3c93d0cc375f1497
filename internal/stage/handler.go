package stage

import (
	"context"
	"strings"
)

// Decision is the acceptance outcome an incoming-inspection handler reports.
type Decision string

const (
	DecisionAccept               Decision = "accept"
	DecisionAcceptWithConditions Decision = "accept_with_conditions"
	DecisionReject               Decision = "reject"
)

// Accepted reports whether the decision allows the workflow to advance.
func (d Decision) Accepted() bool {
	switch d {
	case DecisionAccept, DecisionAcceptWithConditions:
		return true
	default:
		return false
	}
}

// ParseDecision converts a string into a known Decision.
func ParseDecision(value string) (Decision, bool) {
	normalized := Decision(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case DecisionAccept, DecisionAcceptWithConditions, DecisionReject:
		return normalized, true
	}
	return "", false
}

// Completion is the structured payload a stage handler produces when its work
// is done. The orchestrator consumes only the fields needed for branching and
// linking; everything else passes through opaquely into the audit trail.
type Completion struct {
	// EntityID identifies the entity the handler created at this stage
	// (inspection, equipment plan, protocol execution, report).
	EntityID string `json:"entity_id,omitempty"`
	// EntityType is the entity store type of EntityID.
	EntityType string `json:"entity_type,omitempty"`
	// AcceptanceDecision is consumed only at the incoming-inspection stage.
	AcceptanceDecision Decision `json:"acceptance_decision,omitempty"`
	// Reason carries the rejection or hold reason when the decision blocks.
	Reason string `json:"reason,omitempty"`
	// Fields is opaque handler output recorded on the transition event.
	Fields map[string]any `json:"fields,omitempty"`
}

// Handler describes the contract the orchestrator needs from stage domain
// logic. Implementations live outside the core; the orchestrator treats them
// as opaque producers of completion payloads.
type Handler interface {
	Execute(ctx context.Context) (Completion, error)
	HealthCheck(ctx context.Context) Health
}
