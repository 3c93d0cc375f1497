package trace_test

import (
	"context"
	"testing"
	"time"

	"labtrace/internal/logging"
	"labtrace/internal/services"
	"labtrace/internal/storage"
	"labtrace/internal/testsupport"
	"labtrace/internal/trace"
)

func newEngine(t *testing.T) (*trace.Engine, *storage.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return trace.NewEngine(store, logging.NewNop()), store
}

func TestRecordEventAssignsHashAndID(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	eventID, err := engine.RecordEvent(ctx, trace.EventCreate, "workflow", "WF-1", "workflow initiated", "analyst",
		map[string]any{"priority": "high"})
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if eventID == "" {
		t.Fatal("expected non-empty event ID")
	}

	event, err := engine.GetEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if event.DataHash == "" {
		t.Fatal("expected data hash to be set")
	}
	if event.User != "analyst" || event.EntityID != "WF-1" {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestRecordEventNilDataStillHashed(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	eventID, err := engine.RecordEvent(ctx, trace.EventUpdate, "inspection", "II-1", "noted", "tech", nil)
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	valid, _, err := engine.VerifyIntegrity(ctx, eventID)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if !valid {
		t.Fatal("expected nil-data event to verify")
	}
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	eventID, err := engine.RecordEvent(ctx, trace.EventUpdate, "report", "R-1", "report issued", "qa",
		map[string]any{"pass": true, "score": 98.5})
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	valid, _, err := engine.VerifyIntegrity(ctx, eventID)
	if err != nil || !valid {
		t.Fatalf("expected clean event to verify: valid=%v err=%v", valid, err)
	}

	// Mutate the stored payload behind the engine's back.
	var event trace.Event
	if _, err := store.Get(ctx, "trace_event", eventID, &event); err != nil {
		t.Fatalf("load event: %v", err)
	}
	event.Data["pass"] = false
	if err := store.Put(ctx, "trace_event", eventID, event); err != nil {
		t.Fatalf("rewrite event: %v", err)
	}

	valid, message, err := engine.VerifyIntegrity(ctx, eventID)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if valid {
		t.Fatal("expected tampered event to fail verification")
	}
	if message == "" {
		t.Fatal("expected mismatch message")
	}
}

func TestVerifyIntegrityMissingEvent(t *testing.T) {
	engine, _ := newEngine(t)

	_, _, err := engine.VerifyIntegrity(context.Background(), "EVT-missing")
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAuditTrailFiltersAndOrders(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if _, err := engine.RecordEvent(ctx, trace.EventCreate, "workflow", "WF-1", "initiated", "alice", nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if _, err := engine.RecordEvent(ctx, trace.EventTransition, "workflow", "WF-1", "advanced", "bob", nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if _, err := engine.RecordEvent(ctx, trace.EventCreate, "inspection", "II-1", "inspected", "alice", nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	all, err := engine.AuditTrail(ctx, trace.Filter{})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Timestamp.Before(all[i].Timestamp) {
			t.Fatal("expected most-recent-first ordering")
		}
	}

	byEntity, err := engine.AuditTrail(ctx, trace.Filter{EntityType: "workflow", EntityID: "WF-1"})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(byEntity) != 2 {
		t.Fatalf("expected 2 workflow events, got %d", len(byEntity))
	}

	byUser, err := engine.AuditTrail(ctx, trace.Filter{User: "alice"})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("expected 2 events by alice, got %d", len(byUser))
	}

	future, err := engine.AuditTrail(ctx, trace.Filter{From: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("expected no future events, got %d", len(future))
	}
}
