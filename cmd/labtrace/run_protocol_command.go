package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labtrace/internal/protocol"
)

func newRunProtocolCommand(cctx *commandContext) *cobra.Command {
	var workflowID string
	var lowerLimit float64
	var upperLimit float64
	var unit string
	var strict bool
	var readings []string
	var advance bool

	cmd := &cobra.Command{
		Use:   "run-protocol <protocol-id>",
		Short: "Run a tolerance-check protocol through the execution lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseReadings(readings)
			if err != nil {
				return err
			}

			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				module := &protocol.ToleranceCheck{
					ID:         args[0],
					LowerLimit: lowerLimit,
					UpperLimit: upperLimit,
					Unit:       unit,
					Strict:     strict,
				}
				if err := core.registry.Register(module); err != nil {
					return err
				}
				registered, err := core.registry.Get(args[0])
				if err != nil {
					return err
				}

				rec, err := core.runner.Execute(ctx, workflowID, registered, map[string]any{
					"readings": parsed,
				})
				if err != nil {
					return err
				}

				if advance && workflowID != "" {
					if _, err := core.orch.Advance(ctx, workflowID, protocol.Completion(rec)); err != nil {
						return err
					}
				}

				if cctx.JSONMode() {
					return writeJSON(cmd, rec)
				}
				printExecutionSummary(cmd, rec)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow to record the execution against")
	cmd.Flags().Float64Var(&lowerLimit, "low", 0, "Lower tolerance limit")
	cmd.Flags().Float64Var(&upperLimit, "high", 0, "Upper tolerance limit")
	cmd.Flags().StringVar(&unit, "unit", "", "Measurement unit label")
	cmd.Flags().BoolVar(&strict, "strict", false, "Escalate out-of-band readings to critical")
	cmd.Flags().StringSliceVar(&readings, "reading", nil, "Reading as name=value (repeatable)")
	cmd.Flags().BoolVar(&advance, "advance", false, "Advance the workflow with the terminal execution")
	_ = cmd.MarkFlagRequired("reading")
	return cmd
}

func printExecutionSummary(cmd *cobra.Command, rec *protocol.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Execution: %s\n", rec.ExecutionID)
	fmt.Fprintf(out, "Protocol: %s\n", rec.ProtocolID)
	fmt.Fprintf(out, "State: %s\n", rec.State)
	if rec.PassFail != "" {
		fmt.Fprintf(out, "Result: %s\n", rec.PassFail)
	}
	if rec.EndedAt != nil {
		fmt.Fprintf(out, "Duration: %s\n", rec.EndedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}

	if len(rec.Findings) > 0 {
		rows := make([][]string, 0, len(rec.Findings))
		for _, finding := range rec.Findings {
			rows = append(rows, []string{string(finding.Severity), finding.Check, finding.Message})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Severity", "Check", "Message"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft},
		))
	}
}

// parseReadings converts repeated name=value flags into numeric readings.
func parseReadings(pairs []string) (map[string]float64, error) {
	readings := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid reading %q (expected name=value)", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reading %q: %w", pair, err)
		}
		readings[name] = value
	}
	return readings, nil
}
