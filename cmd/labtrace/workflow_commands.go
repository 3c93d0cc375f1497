package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labtrace/internal/stage"
	"labtrace/internal/workflow"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Drive test jobs through the laboratory stages",
	}

	workflowCmd.AddCommand(newWorkflowInitCommand(ctx))
	workflowCmd.AddCommand(newWorkflowAdvanceCommand(ctx))
	workflowCmd.AddCommand(newWorkflowHoldCommand(ctx))
	workflowCmd.AddCommand(newWorkflowResumeCommand(ctx))
	workflowCmd.AddCommand(newWorkflowCancelCommand(ctx))
	workflowCmd.AddCommand(newWorkflowStatusCommand(ctx))
	workflowCmd.AddCommand(newWorkflowListCommand(ctx))

	return workflowCmd
}

func newWorkflowInitCommand(cctx *commandContext) *cobra.Command {
	var serviceRequestID string
	var requester string
	var priority string
	var protocols []string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initiate a workflow from an approved service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				inst, err := core.orch.Initiate(ctx, workflow.ServiceRequest{
					ServiceRequestID: strings.TrimSpace(serviceRequestID),
					Requester:        strings.TrimSpace(requester),
					Priority:         strings.TrimSpace(priority),
					Protocols:        protocols,
				})
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, inst)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Initiated workflow %s at stage %s\n",
					inst.WorkflowID, inst.CurrentStage.DisplayName())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&serviceRequestID, "service-request", "", "Service request entity ID")
	cmd.Flags().StringVar(&requester, "requester", "", "Requesting customer or department")
	cmd.Flags().StringVar(&priority, "priority", "", "Job priority (low, normal, high, urgent)")
	cmd.Flags().StringSliceVar(&protocols, "protocol", nil, "Requested protocol ID (repeatable)")
	_ = cmd.MarkFlagRequired("service-request")
	return cmd
}

func newWorkflowAdvanceCommand(cctx *commandContext) *cobra.Command {
	var entityID string
	var entityType string
	var decision string
	var reason string
	var fields []string

	cmd := &cobra.Command{
		Use:   "advance <workflow-id>",
		Short: "Advance a workflow using the completed stage's output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			completion := stage.Completion{
				EntityID:   strings.TrimSpace(entityID),
				EntityType: strings.TrimSpace(entityType),
				Reason:     strings.TrimSpace(reason),
			}
			if decision != "" {
				parsed, ok := stage.ParseDecision(decision)
				if !ok {
					return fmt.Errorf("invalid decision %q", decision)
				}
				completion.AcceptanceDecision = parsed
			}
			parsedFields, err := parseKeyValues(fields)
			if err != nil {
				return err
			}
			completion.Fields = parsedFields

			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				inst, err := core.orch.Advance(ctx, args[0], completion)
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, inst)
				}
				out := cmd.OutOrStdout()
				if inst.Status == workflow.StatusOnHold {
					fmt.Fprintf(out, "Workflow %s placed on hold at %s\n",
						inst.WorkflowID, inst.CurrentStage.DisplayName())
					return nil
				}
				fmt.Fprintf(out, "Workflow %s advanced to %s (%d%%)\n",
					inst.WorkflowID, inst.CurrentStage.DisplayName(), inst.Progress())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entityID, "entity", "", "Entity created by the completed stage")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Entity store type of --entity")
	cmd.Flags().StringVar(&decision, "decision", "", "Inspection decision (accept, accept_with_conditions, reject)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the transition")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "Stage output field as key=value (repeatable)")
	return cmd
}

func newWorkflowHoldCommand(cctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "hold <workflow-id>",
		Short: "Place a workflow on hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				inst, err := core.orch.Hold(ctx, args[0], strings.TrimSpace(reason))
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, inst)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s placed on hold\n", inst.WorkflowID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the hold")
	return cmd
}

func newWorkflowResumeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <workflow-id>",
		Short: "Resume an on-hold workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				inst, err := core.orch.Resume(ctx, args[0])
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, inst)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s resumed at %s\n",
					inst.WorkflowID, inst.CurrentStage.DisplayName())
				return nil
			})
		},
	}
}

func newWorkflowCancelCommand(cctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <workflow-id>",
		Short: "Cancel a workflow irreversibly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				inst, err := core.orch.Cancel(ctx, args[0], strings.TrimSpace(reason))
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, inst)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s cancelled\n", inst.WorkflowID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the cancellation")
	return cmd
}

func newWorkflowStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show a workflow's status, progress, and stage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				snap, err := core.orch.Status(ctx, args[0])
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, snap)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Workflow: %s\n", snap.WorkflowID)
				fmt.Fprintf(out, "Status: %s\n", snap.Status)
				fmt.Fprintf(out, "Stage: %s\n", snap.CurrentStage.DisplayName())
				fmt.Fprintf(out, "Progress: %d%%\n", snap.ProgressPercentage)
				printDataLinks(out, snap.DataLinks)

				rows := make([][]string, 0, len(snap.StageHistory))
				for _, entry := range snap.StageHistory {
					rows = append(rows, []string{
						entry.Timestamp.Format(time.RFC3339),
						entry.Stage.DisplayName(),
						string(entry.Status),
						entry.Reason,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Timestamp", "Stage", "Status", "Reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newWorkflowListCommand(cctx *commandContext) *cobra.Command {
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := make(map[workflow.Status]bool, len(statusFilter))
			for _, raw := range statusFilter {
				status, ok := workflow.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("invalid status %q", raw)
				}
				wanted[status] = true
			}

			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				instances, err := core.orch.List(ctx)
				if err != nil {
					return err
				}
				if len(wanted) > 0 {
					filtered := instances[:0]
					for _, inst := range instances {
						if wanted[inst.Status] {
							filtered = append(filtered, inst)
						}
					}
					instances = filtered
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, instances)
				}
				if len(instances) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No workflows")
					return nil
				}

				rows := make([][]string, 0, len(instances))
				for _, inst := range instances {
					rows = append(rows, []string{
						inst.WorkflowID,
						string(inst.Status),
						inst.CurrentStage.DisplayName(),
						strconv.Itoa(inst.Progress()) + "%",
						inst.Metadata.Priority,
						inst.CreatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Stage", "Progress", "Priority", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilter, "status", "s", nil, "Filter by workflow status (repeatable)")
	return cmd
}
