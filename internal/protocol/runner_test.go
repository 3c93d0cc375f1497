package protocol_test

import (
	"context"
	"errors"
	"testing"

	"labtrace/internal/logging"
	"labtrace/internal/protocol"
	"labtrace/internal/services"
	"labtrace/internal/testsupport"
	"labtrace/internal/trace"
)

type scriptedModule struct {
	id         string
	setupErr   error
	executeErr error
	analyzeErr error
	findings   []protocol.Finding
}

func (m *scriptedModule) ProtocolID() string { return m.id }

func (m *scriptedModule) Setup(ctx context.Context, run *protocol.Run) error { return m.setupErr }

func (m *scriptedModule) Execute(ctx context.Context, run *protocol.Run) error {
	if m.executeErr != nil {
		return m.executeErr
	}
	run.AddMeasurement("force", 12.5, "kN")
	return nil
}

func (m *scriptedModule) Analyze(ctx context.Context, run *protocol.Run) (map[string]any, error) {
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	return map[string]any{"peak": 12.5}, nil
}

func (m *scriptedModule) Validate(ctx context.Context, run *protocol.Run) error {
	for _, finding := range m.findings {
		run.AddFinding(finding.Severity, finding.Check, finding.Message)
	}
	return nil
}

func (m *scriptedModule) GenerateReport(ctx context.Context, run *protocol.Run) (map[string]any, error) {
	return map[string]any{"summary": "ok"}, nil
}

func newRunner(t *testing.T) (*protocol.Runner, *trace.Engine) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := trace.NewEngine(store, logging.NewNop())
	return protocol.NewRunner(cfg, store, engine, logging.NewNop()), engine
}

func TestExecuteCompletesCleanRun(t *testing.T) {
	runner, engine := newRunner(t)
	ctx := context.Background()

	rec, err := runner.Execute(ctx, "WF-1", &scriptedModule{id: "STC-001"}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.State != protocol.StateCompleted {
		t.Fatalf("expected completed state, got %s", rec.State)
	}
	if rec.PassFail != "pass" {
		t.Fatalf("expected pass, got %q", rec.PassFail)
	}
	if rec.EndedAt == nil {
		t.Fatal("expected end timestamp")
	}
	if len(rec.Measurements) != 1 || rec.Measurements[0].Name != "force" {
		t.Fatalf("unexpected measurements: %#v", rec.Measurements)
	}
	if rec.Results["peak"] != 12.5 {
		t.Fatalf("unexpected results: %#v", rec.Results)
	}
	if rec.Report == nil {
		t.Fatal("expected report payload")
	}

	wantStates := []protocol.State{
		protocol.StateDraft,
		protocol.StateInProgress,
		protocol.StateDataAcquisition,
		protocol.StateAnalysis,
		protocol.StateValidation,
		protocol.StateCompleted,
	}
	if len(rec.StateHistory) != len(wantStates) {
		t.Fatalf("expected %d state changes, got %d", len(wantStates), len(rec.StateHistory))
	}
	for i, want := range wantStates {
		if rec.StateHistory[i].State != want {
			t.Fatalf("state %d: expected %s, got %s", i, want, rec.StateHistory[i].State)
		}
	}

	events, err := engine.AuditTrail(ctx, trace.Filter{EntityID: rec.ExecutionID})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	// One create event plus one transition per state change after draft.
	if len(events) != len(wantStates) {
		t.Fatalf("expected %d trace events, got %d", len(wantStates), len(events))
	}
}

func TestExecutePhaseErrorFailsRunWithoutError(t *testing.T) {
	runner, _ := newRunner(t)

	rec, err := runner.Execute(context.Background(), "", &scriptedModule{
		id:         "STC-002",
		executeErr: errors.New("sensor offline"),
	}, nil)
	if err != nil {
		t.Fatalf("phase failure must not surface as error: %v", err)
	}

	if rec.State != protocol.StateFailed {
		t.Fatalf("expected failed state, got %s", rec.State)
	}
	if rec.PassFail != "fail" {
		t.Fatalf("expected fail, got %q", rec.PassFail)
	}
	last := rec.StateHistory[len(rec.StateHistory)-1]
	if last.Detail == "" {
		t.Fatal("expected failure detail in state history")
	}
}

func TestExecuteCriticalFindingFailsRun(t *testing.T) {
	runner, _ := newRunner(t)

	rec, err := runner.Execute(context.Background(), "", &scriptedModule{
		id: "STC-003",
		findings: []protocol.Finding{
			{Severity: protocol.SeverityWarning, Check: "drift", Message: "minor drift"},
			{Severity: protocol.SeverityCritical, Check: "overload", Message: "load cell saturated"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.State != protocol.StateFailed {
		t.Fatalf("expected failed state, got %s", rec.State)
	}
	if rec.Report != nil {
		t.Fatal("report must not be generated after a critical finding")
	}
	if len(rec.Findings) != 2 {
		t.Fatalf("expected findings retained, got %#v", rec.Findings)
	}
}

func TestExecuteErrorFindingCompletesAsFail(t *testing.T) {
	runner, _ := newRunner(t)

	rec, err := runner.Execute(context.Background(), "", &scriptedModule{
		id: "STC-004",
		findings: []protocol.Finding{
			{Severity: protocol.SeverityError, Check: "tolerance", Message: "reading out of band"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.State != protocol.StateCompleted {
		t.Fatalf("error severity must still complete, got %s", rec.State)
	}
	if rec.PassFail != "fail" {
		t.Fatalf("expected fail summary, got %q", rec.PassFail)
	}
}

func TestCancelTerminalRunRejected(t *testing.T) {
	runner, _ := newRunner(t)
	ctx := context.Background()

	rec, err := runner.Execute(ctx, "", &scriptedModule{id: "STC-005"}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if _, err := runner.Cancel(ctx, rec.ExecutionID, "too late"); !services.IsInvalidTransition(err) {
		t.Fatalf("expected invalid-transition error, got %v", err)
	}
	if _, err := runner.Cancel(ctx, "PE-missing", "x"); !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestToleranceCheckRun(t *testing.T) {
	runner, _ := newRunner(t)
	ctx := context.Background()

	module := &protocol.ToleranceCheck{ID: "TOL-010", LowerLimit: 10, UpperLimit: 20, Unit: "mm"}
	rec, err := runner.Execute(ctx, "", module, map[string]any{
		"readings": map[string]float64{"a": 12, "b": 25},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.State != protocol.StateCompleted {
		t.Fatalf("expected completed state, got %s", rec.State)
	}
	if rec.PassFail != "fail" {
		t.Fatalf("out-of-band reading should fail the summary, got %q", rec.PassFail)
	}
	if rec.Results["count"] != 2 {
		t.Fatalf("unexpected results: %#v", rec.Results)
	}

	strict := &protocol.ToleranceCheck{ID: "TOL-011", LowerLimit: 10, UpperLimit: 20, Strict: true}
	rec, err = runner.Execute(ctx, "", strict, map[string]any{
		"readings": map[string]float64{"a": 25},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if rec.State != protocol.StateFailed {
		t.Fatalf("strict mode must fail the run, got %s", rec.State)
	}
}

func TestRegistry(t *testing.T) {
	registry := protocol.NewRegistry()

	if err := registry.Register(&protocol.ToleranceCheck{ID: "TOL-010"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(&protocol.ToleranceCheck{ID: "TOL-010"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	if _, err := registry.Get("TOL-010"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := registry.Get("TOL-999"); !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}

	ids := registry.IDs()
	if len(ids) != 1 || ids[0] != "TOL-010" {
		t.Fatalf("unexpected IDs: %#v", ids)
	}
}
