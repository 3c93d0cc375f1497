package trace_test

import (
	"context"
	"errors"
	"testing"

	"labtrace/internal/services"
	"labtrace/internal/trace"
)

func TestLineageBothDirections(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if err := engine.RecordLink(ctx, "inspection", "II-1", "equipment_plan", "EP-1", "produces"); err != nil {
		t.Fatalf("RecordLink failed: %v", err)
	}

	down, err := engine.Lineage(ctx, "inspection", "II-1")
	if err != nil {
		t.Fatalf("Lineage failed: %v", err)
	}
	if len(down.Downstream) != 1 || down.Downstream[0].EntityID != "EP-1" {
		t.Fatalf("expected EP-1 downstream of II-1, got %#v", down.Downstream)
	}

	up, err := engine.Lineage(ctx, "equipment_plan", "EP-1")
	if err != nil {
		t.Fatalf("Lineage failed: %v", err)
	}
	if len(up.Upstream) != 1 || up.Upstream[0].EntityID != "II-1" {
		t.Fatalf("expected II-1 upstream of EP-1, got %#v", up.Upstream)
	}
}

func TestRecordLinkRejectsCycles(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if err := engine.RecordLink(ctx, "a", "1", "b", "1", "produces"); err != nil {
		t.Fatalf("RecordLink failed: %v", err)
	}
	if err := engine.RecordLink(ctx, "b", "1", "c", "1", "produces"); err != nil {
		t.Fatalf("RecordLink failed: %v", err)
	}

	err := engine.RecordLink(ctx, "c", "1", "a", "1", "produces")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for cycle-closing link, got %v", err)
	}

	if err := engine.RecordLink(ctx, "a", "1", "a", "1", "produces"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for self-link, got %v", err)
	}
}

func TestLineageEmptyForUnknownEntity(t *testing.T) {
	engine, _ := newEngine(t)

	lineage, err := engine.Lineage(context.Background(), "inspection", "missing")
	if err != nil {
		t.Fatalf("Lineage failed: %v", err)
	}
	if len(lineage.Downstream) != 0 || len(lineage.Upstream) != 0 {
		t.Fatalf("expected empty lineage, got %#v", lineage)
	}
}

func TestGenerateReportWalksChain(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if err := engine.RecordLink(ctx, "service_request", "SR-1", "inspection", "II-1", "produces"); err != nil {
		t.Fatalf("RecordLink failed: %v", err)
	}
	if err := engine.RecordLink(ctx, "inspection", "II-1", "equipment_plan", "EP-1", "produces"); err != nil {
		t.Fatalf("RecordLink failed: %v", err)
	}
	if _, err := engine.RecordEvent(ctx, trace.EventCreate, "service_request", "SR-1", "request created", "alice", nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	report, err := engine.GenerateReport(ctx, "service_request", "SR-1")
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	if len(report.Chain) != 3 {
		t.Fatalf("expected chain of 3, got %d: %#v", len(report.Chain), report.Chain)
	}
	if report.Chain[0].EntityID != "SR-1" || report.Chain[0].Depth != 0 {
		t.Fatalf("unexpected chain head: %#v", report.Chain[0])
	}
	if report.Chain[1].StageName != "Incoming Inspection" {
		t.Fatalf("expected stage annotation, got %#v", report.Chain[1])
	}
	if report.Chain[2].EntityID != "EP-1" || report.Chain[2].Depth != 2 {
		t.Fatalf("unexpected chain tail: %#v", report.Chain[2])
	}
	if len(report.Events) != 1 {
		t.Fatalf("expected 1 event on report, got %d", len(report.Events))
	}
}
