package workflow

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

// Orchestrator enforces the stage graph and serves as the single mutation
// point for workflow instances.
type Orchestrator struct {
	store           *storage.Store
	trace           *trace.Engine
	logger          *slog.Logger
	defaultUser     string
	defaultPriority string
	now             func() time.Time
}

// NewOrchestrator constructs a workflow orchestrator.
func NewOrchestrator(cfg *config.Config, store *storage.Store, engine *trace.Engine, logger *slog.Logger) *Orchestrator {
	defaultUser := "system"
	defaultPriority := "normal"
	if cfg != nil {
		if cfg.Audit.Operator != "" {
			defaultUser = cfg.Audit.Operator
		}
		if cfg.Workflow.DefaultPriority != "" {
			defaultPriority = cfg.Workflow.DefaultPriority
		}
	}
	return &Orchestrator{
		store:           store,
		trace:           engine,
		logger:          logging.NewComponentLogger(logger, "workflow"),
		defaultUser:     defaultUser,
		defaultPriority: defaultPriority,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Initiate creates a workflow for an already-approved service request,
// persists it, and records the creation event.
func (o *Orchestrator) Initiate(ctx context.Context, req ServiceRequest) (*Instance, error) {
	priority := req.Priority
	if priority == "" {
		priority = o.defaultPriority
	}

	now := o.now()
	inst := &Instance{
		WorkflowID:   "WF-" + uuid.NewString(),
		Status:       StatusInitiated,
		CurrentStage: StageServiceRequest,
		StageHistory: []HistoryEntry{{
			Stage:     StageServiceRequest,
			Status:    StatusInitiated,
			Timestamp: now,
		}},
		DataLinks: DataLinks{ServiceRequestID: req.ServiceRequestID},
		Metadata: Metadata{
			Priority:  priority,
			Protocols: append([]string{}, req.Protocols...),
			Requester: req.Requester,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.PutVersioned(ctx, EntityType, inst.WorkflowID, inst, 0); err != nil {
		return nil, err
	}
	inst.Version = 1

	user := o.userFor(ctx)
	eventData := map[string]any{
		"service_request_id": req.ServiceRequestID,
		"priority":           priority,
	}
	if len(req.Protocols) > 0 {
		eventData["protocols"] = req.Protocols
	}
	if _, err := o.trace.RecordEvent(ctx, trace.EventCreate, EntityType, inst.WorkflowID, "workflow initiated", user, eventData); err != nil {
		return nil, err
	}
	if req.ServiceRequestID != "" {
		if err := o.trace.RecordLink(ctx, EntityTypeServiceRequest, req.ServiceRequestID, EntityType, inst.WorkflowID, "initiates"); err != nil {
			return nil, err
		}
	}

	o.logger.Info("workflow initiated",
		logging.String(logging.FieldWorkflowID, inst.WorkflowID),
		logging.String("priority", priority),
	)
	return inst, nil
}

// Advance moves a workflow to its next stage based on the stage-completion
// payload, or parks it on hold when incoming inspection does not accept the
// sample. The instance is persisted before success is reported.
func (o *Orchestrator) Advance(ctx context.Context, workflowID string, completion stage.Completion) (*Instance, error) {
	inst, err := o.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if inst.Status.IsTerminal() {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "advance",
			fmt.Sprintf("%s is %s", workflowID, inst.Status), nil)
	}
	if inst.Status == StatusOnHold {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "advance",
			fmt.Sprintf("%s is on hold; resume it first", workflowID), nil)
	}

	if inst.CurrentStage == StageIncomingInspection && !completion.AcceptanceDecision.Accepted() {
		return o.holdForInspection(ctx, inst, completion)
	}

	next, ok := inst.CurrentStage.Next()
	if !ok {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "advance",
			fmt.Sprintf("%s has no stage after %s", workflowID, inst.CurrentStage), nil)
	}

	var links []pendingLink
	switch inst.CurrentStage {
	case StageIncomingInspection:
		if inst.DataLinks.InspectionID == "" && completion.EntityID != "" {
			inst.DataLinks.InspectionID = completion.EntityID
			links = append(links, pendingLink{
				sourceType: EntityTypeServiceRequest, sourceID: inst.DataLinks.ServiceRequestID,
				targetType: EntityTypeInspection, targetID: completion.EntityID,
				relationship: "produces",
			})
		}
	case StageEquipmentPlanning:
		if inst.DataLinks.PlanningID == "" && completion.EntityID != "" {
			inst.DataLinks.PlanningID = completion.EntityID
			links = append(links, pendingLink{
				sourceType: EntityTypeInspection, sourceID: inst.DataLinks.InspectionID,
				targetType: EntityTypeEquipmentPlan, targetID: completion.EntityID,
				relationship: "produces",
			})
		}
	case StageProtocolExecution:
		if completion.EntityID != "" {
			inst.DataLinks.ProtocolExecutionIDs = append(inst.DataLinks.ProtocolExecutionIDs, completion.EntityID)
			links = append(links, pendingLink{
				sourceType: EntityTypeEquipmentPlan, sourceID: inst.DataLinks.PlanningID,
				targetType: EntityTypeProtocolExecution, targetID: completion.EntityID,
				relationship: "executes",
			})
		}
	case StageReportGeneration:
		if completion.EntityID != "" {
			inst.DataLinks.ReportIDs = append(inst.DataLinks.ReportIDs, completion.EntityID)
			for _, execID := range inst.DataLinks.ProtocolExecutionIDs {
				links = append(links, pendingLink{
					sourceType: EntityTypeProtocolExecution, sourceID: execID,
					targetType: EntityTypeReport, targetID: completion.EntityID,
					relationship: "reported_in",
				})
			}
		}
	}

	fromStage := inst.CurrentStage
	inst.CurrentStage = next
	if next == StageCompleted {
		inst.Status = StatusCompleted
		completedAt := o.now()
		inst.CompletedAt = &completedAt
	} else {
		inst.Status = StatusInProgress
	}

	if err := o.persistTransition(ctx, inst, completion.Reason); err != nil {
		return nil, err
	}

	user := o.userFor(ctx)
	eventData := map[string]any{
		"from_stage": string(fromStage),
		"to_stage":   string(next),
	}
	if completion.EntityID != "" {
		eventData["entity_id"] = completion.EntityID
	}
	for key, value := range completion.Fields {
		eventData[key] = value
	}
	if _, err := o.trace.RecordEvent(ctx, trace.EventTransition, EntityType, inst.WorkflowID,
		fmt.Sprintf("advanced from %s to %s", fromStage.DisplayName(), next.DisplayName()), user, eventData); err != nil {
		return nil, err
	}

	for _, link := range links {
		if link.sourceID == "" || link.targetID == "" {
			continue
		}
		if err := o.trace.RecordLink(ctx, link.sourceType, link.sourceID, link.targetType, link.targetID, link.relationship); err != nil {
			return nil, err
		}
	}

	o.logger.Info("workflow advanced",
		logging.String(logging.FieldWorkflowID, inst.WorkflowID),
		logging.String("from_stage", string(fromStage)),
		logging.String("to_stage", string(next)),
	)
	return inst, nil
}

// RecordExecution appends one more completed protocol execution while the
// workflow remains at the protocol-execution stage. Used when a job runs
// several protocols before advancing to analysis.
func (o *Orchestrator) RecordExecution(ctx context.Context, workflowID, executionID string) (*Instance, error) {
	inst, err := o.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if inst.Status.IsTerminal() {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "record execution",
			fmt.Sprintf("%s is %s", workflowID, inst.Status), nil)
	}
	if inst.CurrentStage != StageProtocolExecution {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "record execution",
			fmt.Sprintf("%s is at %s", workflowID, inst.CurrentStage), nil)
	}

	inst.DataLinks.ProtocolExecutionIDs = append(inst.DataLinks.ProtocolExecutionIDs, executionID)
	inst.UpdatedAt = o.now()
	if err := o.store.PutVersioned(ctx, EntityType, inst.WorkflowID, inst, inst.Version); err != nil {
		return nil, err
	}
	inst.Version++

	if _, err := o.trace.RecordEvent(ctx, trace.EventUpdate, EntityType, inst.WorkflowID,
		"protocol execution recorded", o.userFor(ctx), map[string]any{"execution_id": executionID}); err != nil {
		return nil, err
	}
	if inst.DataLinks.PlanningID != "" {
		if err := o.trace.RecordLink(ctx, EntityTypeEquipmentPlan, inst.DataLinks.PlanningID,
			EntityTypeProtocolExecution, executionID, "executes"); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Hold parks a non-terminal workflow without altering its current stage.
func (o *Orchestrator) Hold(ctx context.Context, workflowID, reason string) (*Instance, error) {
	return o.overrideStatus(ctx, workflowID, StatusOnHold, reason, trace.EventUpdate, "workflow placed on hold")
}

// Resume returns an on-hold workflow to progress at its current stage.
func (o *Orchestrator) Resume(ctx context.Context, workflowID string) (*Instance, error) {
	inst, err := o.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if inst.Status != StatusOnHold {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "resume",
			fmt.Sprintf("%s is %s, not on hold", workflowID, inst.Status), nil)
	}

	inst.Status = StatusInProgress
	if err := o.persistTransition(ctx, inst, ""); err != nil {
		return nil, err
	}
	if _, err := o.trace.RecordEvent(ctx, trace.EventUpdate, EntityType, inst.WorkflowID,
		"workflow resumed", o.userFor(ctx), nil); err != nil {
		return nil, err
	}
	return inst, nil
}

// Cancel terminates a workflow irreversibly. Already-completed stage work is
// not rolled back; external cleanup belongs to the stage handlers.
func (o *Orchestrator) Cancel(ctx context.Context, workflowID, reason string) (*Instance, error) {
	return o.overrideStatus(ctx, workflowID, StatusCancelled, reason, trace.EventCancel, "workflow cancelled")
}

// Get loads an instance and refreshes its version token.
func (o *Orchestrator) Get(ctx context.Context, workflowID string) (*Instance, error) {
	var inst Instance
	version, err := o.store.Get(ctx, EntityType, workflowID, &inst)
	if err != nil {
		return nil, err
	}
	inst.Version = version
	return &inst, nil
}

// List returns every workflow instance ordered by creation time.
func (o *Orchestrator) List(ctx context.Context) ([]*Instance, error) {
	records, err := o.store.List(ctx, EntityType)
	if err != nil {
		return nil, err
	}
	instances := make([]*Instance, 0, len(records))
	for _, raw := range records {
		var inst Instance
		if err := raw.Decode(&inst); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "workflow", "list", "", err)
		}
		inst.Version = raw.Version
		instances = append(instances, &inst)
	}
	return instances, nil
}

// Status returns the derived status snapshot for a workflow.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) (*Snapshot, error) {
	inst, err := o.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		WorkflowID:         inst.WorkflowID,
		Status:             inst.Status,
		CurrentStage:       inst.CurrentStage,
		ProgressPercentage: inst.Progress(),
		DataLinks:          inst.DataLinks,
		StageHistory:       inst.StageHistory,
	}, nil
}

type pendingLink struct {
	sourceType   string
	sourceID     string
	targetType   string
	targetID     string
	relationship string
}

func (o *Orchestrator) holdForInspection(ctx context.Context, inst *Instance, completion stage.Completion) (*Instance, error) {
	inst.Status = StatusOnHold
	if inst.DataLinks.InspectionID == "" && completion.EntityID != "" {
		inst.DataLinks.InspectionID = completion.EntityID
	}
	if err := o.persistTransition(ctx, inst, completion.Reason); err != nil {
		return nil, err
	}

	eventData := map[string]any{
		"acceptance_decision": string(completion.AcceptanceDecision),
	}
	if completion.Reason != "" {
		eventData["reason"] = completion.Reason
	}
	if _, err := o.trace.RecordEvent(ctx, trace.EventReject, EntityType, inst.WorkflowID,
		"incoming inspection did not accept sample", o.userFor(ctx), eventData); err != nil {
		return nil, err
	}

	o.logger.Info("workflow on hold after inspection",
		logging.String(logging.FieldWorkflowID, inst.WorkflowID),
		logging.String("reason", completion.Reason),
	)
	return inst, nil
}

func (o *Orchestrator) overrideStatus(ctx context.Context, workflowID string, status Status, reason, eventType, action string) (*Instance, error) {
	inst, err := o.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if inst.Status.IsTerminal() {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", string(status),
			fmt.Sprintf("%s is %s", workflowID, inst.Status), nil)
	}

	inst.Status = status
	if err := o.persistTransition(ctx, inst, reason); err != nil {
		return nil, err
	}

	var eventData map[string]any
	if reason != "" {
		eventData = map[string]any{"reason": reason}
	}
	if _, err := o.trace.RecordEvent(ctx, eventType, EntityType, inst.WorkflowID, action, o.userFor(ctx), eventData); err != nil {
		return nil, err
	}
	return inst, nil
}

// persistTransition appends one history entry and writes the instance under
// its optimistic version token.
func (o *Orchestrator) persistTransition(ctx context.Context, inst *Instance, reason string) error {
	now := o.now()
	inst.StageHistory = append(inst.StageHistory, HistoryEntry{
		Stage:     inst.CurrentStage,
		Status:    inst.Status,
		Timestamp: now,
		Reason:    reason,
	})
	inst.UpdatedAt = now

	if err := o.store.PutVersioned(ctx, EntityType, inst.WorkflowID, inst, inst.Version); err != nil {
		return err
	}
	inst.Version++
	return nil
}

func (o *Orchestrator) userFor(ctx context.Context) string {
	if user, ok := services.UserFromContext(ctx); ok {
		return user
	}
	return o.defaultUser
}
