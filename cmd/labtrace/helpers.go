package main

import (
	"fmt"
	"io"
	"strings"

	"labtrace/internal/workflow"
)

// parseKeyValues converts repeated key=value flags into a field map.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid field %q (expected key=value)", pair)
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields, nil
}

func printDataLinks(out io.Writer, links workflow.DataLinks) {
	if links.ServiceRequestID != "" {
		fmt.Fprintf(out, "Service request: %s\n", links.ServiceRequestID)
	}
	if links.InspectionID != "" {
		fmt.Fprintf(out, "Inspection: %s\n", links.InspectionID)
	}
	if links.PlanningID != "" {
		fmt.Fprintf(out, "Equipment plan: %s\n", links.PlanningID)
	}
	if len(links.ProtocolExecutionIDs) > 0 {
		fmt.Fprintf(out, "Protocol executions: %s\n", strings.Join(links.ProtocolExecutionIDs, ", "))
	}
	if len(links.ReportIDs) > 0 {
		fmt.Fprintf(out, "Reports: %s\n", strings.Join(links.ReportIDs, ", "))
	}
}
