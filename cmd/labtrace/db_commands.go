package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Entity database maintenance",
	}

	dbCmd.AddCommand(newDBHealthCommand(ctx))
	dbCmd.AddCommand(newDBStatsCommand(ctx))

	return dbCmd
}

func newDBHealthCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check entity database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				health, err := core.store.CheckHealth(ctx)
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, health)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "entities table present: %s\n", yesNo(health.TableExists))
				if len(health.ColumnsPresent) > 0 {
					cols := append([]string(nil), health.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(health.MissingColumns) > 0 {
					missing := append([]string(nil), health.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Total records: %d\n", health.TotalRecords)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}

func newDBStatsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts per entity type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withCore(cmd, func(ctx context.Context, core *coreContext) error {
				stats, err := core.store.Stats(ctx)
				if err != nil {
					return err
				}
				if cctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				if len(stats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Database is empty")
					return nil
				}

				types := make([]string, 0, len(stats))
				for entityType := range stats {
					types = append(types, entityType)
				}
				sort.Strings(types)

				rows := make([][]string, 0, len(types))
				for _, entityType := range types {
					rows = append(rows, []string{entityType, fmt.Sprintf("%d", stats[entityType])})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Entity Type", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
