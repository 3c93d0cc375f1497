package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labtrace/internal/trace"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the traceability ledger and entity lineage",
	}

	auditCmd.AddCommand(newAuditTrailCommand(ctx))
	auditCmd.AddCommand(newAuditVerifyCommand(ctx))
	auditCmd.AddCommand(newAuditLineageCommand(ctx))
	auditCmd.AddCommand(newAuditReportCommand(ctx))

	return auditCmd
}

func newAuditTrailCommand(cctx *commandContext) *cobra.Command {
	var entityType string
	var entityID string
	var user string
	var since string
	var until string

	cmd := &cobra.Command{
		Use:   "trail",
		Short: "List audit events, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := trace.Filter{
				EntityType: strings.TrimSpace(entityType),
				EntityID:   strings.TrimSpace(entityID),
				User:       strings.TrimSpace(user),
			}
			var err error
			if filter.From, err = parseTimeFlag(since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if filter.To, err = parseTimeFlag(until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				events, err := core.engine.AuditTrail(ctx, filter)
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, events)
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events")
					return nil
				}

				rows := make([][]string, 0, len(events))
				for _, event := range events {
					rows = append(rows, []string{
						event.Timestamp.Format(time.RFC3339),
						event.EventType,
						event.EntityType,
						event.EntityID,
						event.Action,
						event.User,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Timestamp", "Type", "Entity Type", "Entity", "Action", "User"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by entity type")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Filter by entity ID")
	cmd.Flags().StringVar(&user, "user", "", "Filter by recorded user")
	cmd.Flags().StringVar(&since, "since", "", "Only events at or after this RFC 3339 timestamp")
	cmd.Flags().StringVar(&until, "until", "", "Only events at or before this RFC 3339 timestamp")
	return cmd
}

func newAuditVerifyCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <event-id>",
		Short: "Recompute an event's payload hash and compare it to the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				valid, message, err := core.engine.VerifyIntegrity(ctx, args[0])
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"event_id": args[0],
						"valid":    valid,
						"message":  message,
					})
				}
				out := cmd.OutOrStdout()
				if valid {
					fmt.Fprintf(out, "Event %s verified: payload hash matches\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Event %s FAILED verification: %s\n", args[0], message)
				return nil
			})
		},
	}
}

func newAuditLineageCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <entity-type> <entity-id>",
		Short: "Show an entity's upstream and downstream relationships",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				lineage, err := core.engine.Lineage(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, lineage)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Lineage for %s %s\n", args[0], args[1])
				printEntityRefs(cmd, "Upstream", lineage.Upstream)
				printEntityRefs(cmd, "Downstream", lineage.Downstream)
				return nil
			})
		},
	}
}

func newAuditReportCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report <entity-type> <entity-id>",
		Short: "Generate the full traceability report for an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				report, err := core.engine.GenerateReport(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Traceability report for %s %s (generated %s)\n",
					report.EntityType, report.EntityID, report.GeneratedAt.Format(time.RFC3339))
				printEntityRefs(cmd, "Upstream", report.Lineage.Upstream)
				printEntityRefs(cmd, "Downstream", report.Lineage.Downstream)

				if len(report.Chain) > 0 {
					rows := make([][]string, 0, len(report.Chain))
					for _, entry := range report.Chain {
						rows = append(rows, []string{
							fmt.Sprintf("%d", entry.Depth),
							entry.EntityType,
							entry.EntityID,
							entry.StageName,
							entry.RelationshipType,
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Depth", "Entity Type", "Entity", "Stage", "Relationship"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}

				fmt.Fprintf(out, "Events: %d\n", len(report.Events))
				return nil
			})
		},
	}
}

func printEntityRefs(cmd *cobra.Command, label string, refs []trace.EntityRef) {
	out := cmd.OutOrStdout()
	if len(refs) == 0 {
		fmt.Fprintf(out, "%s: none\n", label)
		return
	}
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, fmt.Sprintf("%s %s (%s)", ref.EntityType, ref.EntityID, ref.RelationshipType))
	}
	fmt.Fprintf(out, "%s: %s\n", label, strings.Join(parts, "; "))
}

func parseTimeFlag(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, trimmed)
}
