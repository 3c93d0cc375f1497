package trace

import (
	"context"
	"time"

	"labtrace/internal/services"
)

// stageNames maps entity types to the workflow stage each one is produced at,
// used to annotate the chain walk in traceability reports.
var stageNames = map[string]string{
	"service_request":    "Service Request",
	"workflow":           "Workflow",
	"inspection":         "Incoming Inspection",
	"equipment_plan":     "Equipment Planning",
	"protocol_execution": "Protocol Execution",
	"analysis":           "Analysis",
	"report":             "Report Generation",
}

// ChainEntry is one hop in the ordered downstream walk of a report.
type ChainEntry struct {
	EntityType       string `json:"entity_type"`
	EntityID         string `json:"entity_id"`
	StageName        string `json:"stage_name"`
	RelationshipType string `json:"relationship_type,omitempty"`
	Depth            int    `json:"depth"`
}

// Report combines lineage, audit events, and the downstream chain for one
// entity into a single reviewable document.
type Report struct {
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Lineage     Lineage   `json:"lineage"`
	Events      []Event   `json:"events"`
	Chain       []ChainEntry `json:"chain"`
}

// GenerateReport builds the traceability report for an entity: its lineage in
// both directions, every audit event recorded against it, and the complete
// downstream chain annotated with stage names.
func (e *Engine) GenerateReport(ctx context.Context, entityType, entityID string) (*Report, error) {
	lineage, err := e.Lineage(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	events, err := e.AuditTrail(ctx, Filter{EntityType: entityType, EntityID: entityID})
	if err != nil {
		return nil, err
	}

	chain, err := e.walkChain(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	return &Report{
		EntityType:  entityType,
		EntityID:    entityID,
		GeneratedAt: e.now(),
		Lineage:     lineage,
		Events:      events,
		Chain:       chain,
	}, nil
}

func (e *Engine) walkChain(ctx context.Context, entityType, entityID string) ([]ChainEntry, error) {
	var chain []ChainEntry
	visited := map[string]struct{}{}

	type frame struct {
		ref   EntityRef
		depth int
	}
	queue := []frame{{ref: EntityRef{EntityType: entityType, EntityID: entityID}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		key := linkKey(current.ref.EntityType, current.ref.EntityID)
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		chain = append(chain, ChainEntry{
			EntityType:       current.ref.EntityType,
			EntityID:         current.ref.EntityID,
			StageName:        stageName(current.ref.EntityType),
			RelationshipType: current.ref.RelationshipType,
			Depth:            current.depth,
		})

		var rel Relationship
		if _, err := e.store.Get(ctx, linkEntityType, key, &rel); err != nil {
			if services.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, link := range rel.Links {
			queue = append(queue, frame{
				ref: EntityRef{
					EntityType:       link.TargetEntityType,
					EntityID:         link.TargetEntityID,
					RelationshipType: link.RelationshipType,
				},
				depth: current.depth + 1,
			})
		}
	}
	return chain, nil
}

func stageName(entityType string) string {
	if name, ok := stageNames[entityType]; ok {
		return name
	}
	return entityType
}
