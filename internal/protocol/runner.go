package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"labtrace/internal/config"
	"labtrace/internal/logging"
	"labtrace/internal/services"
	"labtrace/internal/stage"
	"labtrace/internal/storage"
	"labtrace/internal/trace"
)

// Runner drives protocol modules through the execution lifecycle, persisting
// the record and emitting a trace event on every phase transition.
type Runner struct {
	store       *storage.Store
	trace       *trace.Engine
	logger      *slog.Logger
	defaultUser string
	now         func() time.Time
}

// NewRunner constructs a protocol runner.
func NewRunner(cfg *config.Config, store *storage.Store, engine *trace.Engine, logger *slog.Logger) *Runner {
	defaultUser := "system"
	if cfg != nil && cfg.Audit.Operator != "" {
		defaultUser = cfg.Audit.Operator
	}
	return &Runner{
		store:       store,
		trace:       engine,
		logger:      logging.NewComponentLogger(logger, "protocol"),
		defaultUser: defaultUser,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs a module through setup, data acquisition, analysis, validation
// and report generation. Phase failures and critical findings terminate the
// run in the Failed state; they are not returned as errors. Only persistence
// and trace failures propagate.
func (r *Runner) Execute(ctx context.Context, workflowID string, module Module, params map[string]any) (*Record, error) {
	now := r.now()
	rec := &Record{
		ExecutionID: "PE-" + uuid.NewString(),
		ProtocolID:  module.ProtocolID(),
		WorkflowID:  workflowID,
		State:       StateDraft,
		StartedAt:   now,
		Parameters:  params,
		StateHistory: []StateChange{{
			State:     StateDraft,
			Timestamp: now,
		}},
	}
	if err := r.store.PutVersioned(ctx, EntityType, rec.ExecutionID, rec, 0); err != nil {
		return nil, err
	}
	rec.Version = 1

	user := r.userFor(ctx)
	eventData := map[string]any{"protocol_id": rec.ProtocolID}
	if workflowID != "" {
		eventData["workflow_id"] = workflowID
	}
	if _, err := r.trace.RecordEvent(ctx, trace.EventCreate, EntityType, rec.ExecutionID,
		"protocol execution dispatched", user, eventData); err != nil {
		return nil, err
	}

	run := &Run{Parameters: params, now: r.now}

	type phase struct {
		state State
		name  string
		hook  func(context.Context, *Run) error
	}
	phases := []phase{
		{StateInProgress, "setup", module.Setup},
		{StateDataAcquisition, "execute", module.Execute},
		{StateAnalysis, "analyze", func(ctx context.Context, run *Run) error {
			results, err := module.Analyze(ctx, run)
			if err != nil {
				return err
			}
			rec.Results = results
			return nil
		}},
		{StateValidation, "validate", module.Validate},
	}

	for _, p := range phases {
		if err := r.advanceState(ctx, rec, p.state, ""); err != nil {
			return nil, err
		}
		hookErr := p.hook(ctx, run)
		rec.Measurements = run.measurements
		rec.Findings = run.findings
		if hookErr != nil {
			return rec, r.fail(ctx, rec, fmt.Sprintf("%s phase failed: %v", p.name, hookErr))
		}
	}

	if worst := rec.WorstSeverity(); worst.Fatal() {
		return rec, r.fail(ctx, rec, "critical validation finding")
	}

	report, err := module.GenerateReport(ctx, run)
	rec.Measurements = run.measurements
	rec.Findings = run.findings
	if err != nil {
		return rec, r.fail(ctx, rec, fmt.Sprintf("report phase failed: %v", err))
	}
	rec.Report = report

	rec.PassFail = "pass"
	if worst := rec.WorstSeverity(); worst == SeverityError {
		rec.PassFail = "fail"
	}
	ended := r.now()
	rec.EndedAt = &ended
	if err := r.advanceState(ctx, rec, StateCompleted, ""); err != nil {
		return nil, err
	}

	r.logger.Info("protocol execution completed",
		logging.String(logging.FieldEntityID, rec.ExecutionID),
		logging.String("protocol_id", rec.ProtocolID),
		logging.String("pass_fail", rec.PassFail),
	)
	return rec, nil
}

// Cancel terminates a non-terminal execution.
func (r *Runner) Cancel(ctx context.Context, executionID, reason string) (*Record, error) {
	rec, err := r.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if rec.State.IsTerminal() {
		return nil, services.Wrap(services.ErrInvalidTransition, "protocol", "cancel",
			fmt.Sprintf("%s is %s", executionID, rec.State), nil)
	}

	ended := r.now()
	rec.EndedAt = &ended
	if err := r.advanceState(ctx, rec, StateCancelled, reason); err != nil {
		return nil, err
	}
	if _, err := r.trace.RecordEvent(ctx, trace.EventCancel, EntityType, rec.ExecutionID,
		"protocol execution cancelled", r.userFor(ctx), map[string]any{"reason": reason}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get loads an execution record with its version token.
func (r *Runner) Get(ctx context.Context, executionID string) (*Record, error) {
	var rec Record
	version, err := r.store.Get(ctx, EntityType, executionID, &rec)
	if err != nil {
		return nil, err
	}
	rec.Version = version
	return &rec, nil
}

// List returns all execution records ordered by creation time.
func (r *Runner) List(ctx context.Context) ([]*Record, error) {
	raws, err := r.store.List(ctx, EntityType)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := raw.Decode(&rec); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "protocol", "list", "", err)
		}
		rec.Version = raw.Version
		records = append(records, &rec)
	}
	return records, nil
}

// Completion maps a terminal record to the stage-completion payload the
// workflow orchestrator consumes at the protocol-execution edge.
func Completion(rec *Record) stage.Completion {
	return stage.Completion{
		EntityID:   rec.ExecutionID,
		EntityType: EntityType,
		Fields: map[string]any{
			"protocol_id": rec.ProtocolID,
			"state":       string(rec.State),
			"pass_fail":   rec.PassFail,
		},
	}
}

func (r *Runner) fail(ctx context.Context, rec *Record, detail string) error {
	rec.PassFail = "fail"
	ended := r.now()
	rec.EndedAt = &ended
	if err := r.advanceState(ctx, rec, StateFailed, detail); err != nil {
		return err
	}
	r.logger.Warn("protocol execution failed",
		logging.String(logging.FieldEntityID, rec.ExecutionID),
		logging.String("protocol_id", rec.ProtocolID),
		logging.String("detail", detail),
	)
	return nil
}

// advanceState moves the record to the next lifecycle state, persists it, and
// records the transition on the trace ledger.
func (r *Runner) advanceState(ctx context.Context, rec *Record, state State, detail string) error {
	from := rec.State
	rec.State = state
	rec.StateHistory = append(rec.StateHistory, StateChange{
		State:     state,
		Timestamp: r.now(),
		Detail:    detail,
	})
	if err := r.store.PutVersioned(ctx, EntityType, rec.ExecutionID, rec, rec.Version); err != nil {
		return err
	}
	rec.Version++

	eventData := map[string]any{
		"from_state": string(from),
		"to_state":   string(state),
	}
	if detail != "" {
		eventData["detail"] = detail
	}
	if _, err := r.trace.RecordEvent(ctx, trace.EventTransition, EntityType, rec.ExecutionID,
		fmt.Sprintf("lifecycle %s to %s", from, state), r.userFor(ctx), eventData); err != nil {
		return err
	}
	return nil
}

func (r *Runner) userFor(ctx context.Context) string {
	if user, ok := services.UserFromContext(ctx); ok {
		return user
	}
	return r.defaultUser
}
