package trace

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"labtrace/internal/logging"
	"labtrace/internal/services"
	"labtrace/internal/storage"
)

// Engine produces and preserves the audit trail and entity lineage graph.
// It depends only on the entity store for persistence.
type Engine struct {
	store  *storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine constructs a traceability engine backed by the provided store.
func NewEngine(store *storage.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "trace"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordEvent appends an immutable event to the ledger and returns its
// identifier. Persistence failures propagate; the event is never acknowledged
// before it is durable.
func (e *Engine) RecordEvent(ctx context.Context, eventType, entityType, entityID, action, user string, data map[string]any) (string, error) {
	hash, err := canonicalHash(data)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "trace", "record event", "", err)
	}

	timestamp := e.now()
	event := Event{
		EventID:    fmt.Sprintf("EVT-%d-%s", timestamp.UnixNano(), uuid.NewString()[:8]),
		Timestamp:  timestamp,
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		User:       user,
		Data:       data,
		DataHash:   hash,
	}

	if err := e.store.Put(ctx, eventEntityType, event.EventID, event); err != nil {
		return "", err
	}

	e.logger.Debug("event recorded",
		logging.String(logging.FieldEventType, eventType),
		logging.String(logging.FieldEntityType, entityType),
		logging.String(logging.FieldEntityID, entityID),
		logging.String(logging.FieldUser, user),
	)
	return event.EventID, nil
}

// Filter narrows an audit trail query. Zero-valued fields match everything.
type Filter struct {
	EntityType string
	EntityID   string
	User       string
	From       time.Time
	To         time.Time
}

func (f Filter) matches(event Event) bool {
	if f.EntityType != "" && !strings.EqualFold(event.EntityType, f.EntityType) {
		return false
	}
	if f.EntityID != "" && event.EntityID != f.EntityID {
		return false
	}
	if f.User != "" && !strings.EqualFold(event.User, f.User) {
		return false
	}
	if !f.From.IsZero() && event.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && event.Timestamp.After(f.To) {
		return false
	}
	return true
}

// AuditTrail returns events matching the filter, most recent first.
func (e *Engine) AuditTrail(ctx context.Context, filter Filter) ([]Event, error) {
	records, err := e.store.List(ctx, eventEntityType)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(records))
	for _, raw := range records {
		var event Event
		if err := raw.Decode(&event); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "trace", "audit trail", "", err)
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

// GetEvent fetches a single event by identifier.
func (e *Engine) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var event Event
	if _, err := e.store.Get(ctx, eventEntityType, eventID, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// VerifyIntegrity recomputes the digest of a stored event's payload and
// compares it to the recorded hash. A mismatch indicates tampering or
// corruption and is reported, never repaired: the event is evidence.
func (e *Engine) VerifyIntegrity(ctx context.Context, eventID string) (bool, string, error) {
	event, err := e.GetEvent(ctx, eventID)
	if err != nil {
		return false, "", err
	}

	recomputed, err := canonicalHash(event.Data)
	if err != nil {
		return false, "", services.Wrap(services.ErrIntegrity, "trace", "verify", eventID, err)
	}

	if recomputed != event.DataHash {
		e.logger.Warn("event integrity check failed",
			logging.String("event_id", eventID),
			logging.String("stored_hash", event.DataHash),
			logging.String("computed_hash", recomputed),
		)
		return false, fmt.Sprintf("hash mismatch for %s: stored %s, computed %s", eventID, event.DataHash, recomputed), nil
	}
	return true, "event data verified", nil
}
