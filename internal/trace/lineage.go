package trace

import (
	"context"
	"time"

	"labtrace/internal/logging"
	"labtrace/internal/services"
)

// Link is one directed edge in the lineage graph.
type Link struct {
	TargetEntityType string    `json:"target_entity_type"`
	TargetEntityID   string    `json:"target_entity_id"`
	RelationshipType string    `json:"relationship_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// Relationship is the adjacency entry persisted per source entity.
type Relationship struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Links      []Link `json:"links"`
}

// EntityRef identifies one related entity in a lineage answer.
type EntityRef struct {
	EntityType       string `json:"entity_type"`
	EntityID         string `json:"entity_id"`
	RelationshipType string `json:"relationship_type"`
}

// Lineage holds both traversal directions for one entity.
type Lineage struct {
	Downstream []EntityRef `json:"downstream_entities"`
	Upstream   []EntityRef `json:"upstream_entities"`
}

func linkKey(entityType, entityID string) string {
	return entityType + ":" + entityID
}

// RecordLink appends a directed relationship from source to target. Links must
// point downstream; a link that would close a cycle is rejected.
func (e *Engine) RecordLink(ctx context.Context, sourceType, sourceID, targetType, targetID, relationshipType string) error {
	if sourceType == targetType && sourceID == targetID {
		return services.Wrap(services.ErrValidation, "trace", "record link", "entity cannot link to itself", nil)
	}

	cyclic, err := e.reachable(ctx, targetType, targetID, sourceType, sourceID)
	if err != nil {
		return err
	}
	if cyclic {
		return services.Wrap(services.ErrValidation, "trace", "record link",
			linkKey(sourceType, sourceID)+" is downstream of "+linkKey(targetType, targetID), nil)
	}

	key := linkKey(sourceType, sourceID)
	rel := Relationship{EntityType: sourceType, EntityID: sourceID}
	if _, err := e.store.Get(ctx, linkEntityType, key, &rel); err != nil && !services.IsNotFound(err) {
		return err
	}

	rel.Links = append(rel.Links, Link{
		TargetEntityType: targetType,
		TargetEntityID:   targetID,
		RelationshipType: relationshipType,
		CreatedAt:        e.now(),
	})

	if err := e.store.Put(ctx, linkEntityType, key, rel); err != nil {
		return err
	}

	e.logger.Debug("entity link recorded",
		logging.String("source", key),
		logging.String("target", linkKey(targetType, targetID)),
		logging.String("relationship", relationshipType),
	)
	return nil
}

// Lineage answers both traversal directions for an entity. Downstream is a
// direct adjacency lookup; upstream scans every adjacency entry for links
// that reference the entity.
func (e *Engine) Lineage(ctx context.Context, entityType, entityID string) (Lineage, error) {
	lineage := Lineage{}

	var rel Relationship
	if _, err := e.store.Get(ctx, linkEntityType, linkKey(entityType, entityID), &rel); err != nil {
		if !services.IsNotFound(err) {
			return Lineage{}, err
		}
	} else {
		for _, link := range rel.Links {
			lineage.Downstream = append(lineage.Downstream, EntityRef{
				EntityType:       link.TargetEntityType,
				EntityID:         link.TargetEntityID,
				RelationshipType: link.RelationshipType,
			})
		}
	}

	records, err := e.store.List(ctx, linkEntityType)
	if err != nil {
		return Lineage{}, err
	}
	for _, raw := range records {
		var entry Relationship
		if err := raw.Decode(&entry); err != nil {
			return Lineage{}, services.Wrap(services.ErrPersistence, "trace", "lineage", "", err)
		}
		for _, link := range entry.Links {
			if link.TargetEntityType == entityType && link.TargetEntityID == entityID {
				lineage.Upstream = append(lineage.Upstream, EntityRef{
					EntityType:       entry.EntityType,
					EntityID:         entry.EntityID,
					RelationshipType: link.RelationshipType,
				})
			}
		}
	}

	return lineage, nil
}

// reachable reports whether target is reachable from start following
// downstream links.
func (e *Engine) reachable(ctx context.Context, startType, startID, targetType, targetID string) (bool, error) {
	visited := map[string]struct{}{}
	queue := []EntityRef{{EntityType: startType, EntityID: startID}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		key := linkKey(current.EntityType, current.EntityID)
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		if current.EntityType == targetType && current.EntityID == targetID {
			return true, nil
		}

		var rel Relationship
		if _, err := e.store.Get(ctx, linkEntityType, key, &rel); err != nil {
			if services.IsNotFound(err) {
				continue
			}
			return false, err
		}
		for _, link := range rel.Links {
			queue = append(queue, EntityRef{EntityType: link.TargetEntityType, EntityID: link.TargetEntityID})
		}
	}
	return false, nil
}
