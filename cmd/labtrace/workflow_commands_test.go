package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labtrace/internal/workflow"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[audit]
operator = "tester"
`, filepath.Join(dir, "data"), filepath.Join(dir, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v\noutput: %s", args, err, buf.String())
	}
	return buf.String()
}

func TestWorkflowInitAndStatusCommands(t *testing.T) {
	configPath := writeTestConfig(t)

	out := runCommand(t, configPath, "--json", "workflow", "init",
		"--service-request", "SR-1", "--protocol", "STC-001")
	var inst workflow.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("decode init output: %v\noutput: %s", err, out)
	}
	if inst.WorkflowID == "" || inst.Status != workflow.StatusInitiated {
		t.Fatalf("unexpected instance: %#v", inst)
	}

	statusOut := runCommand(t, configPath, "workflow", "status", inst.WorkflowID)
	if !strings.Contains(statusOut, "Service Request") {
		t.Fatalf("expected stage name in status output:\n%s", statusOut)
	}
	if !strings.Contains(statusOut, "Progress: 10%") {
		t.Fatalf("expected progress in status output:\n%s", statusOut)
	}

	listOut := runCommand(t, configPath, "workflow", "list")
	if !strings.Contains(listOut, inst.WorkflowID) {
		t.Fatalf("expected workflow in list output:\n%s", listOut)
	}
}

func TestWorkflowAdvanceAndAuditCommands(t *testing.T) {
	configPath := writeTestConfig(t)

	out := runCommand(t, configPath, "--json", "workflow", "init", "--service-request", "SR-2")
	var inst workflow.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("decode init output: %v", err)
	}

	advanceOut := runCommand(t, configPath, "workflow", "advance", inst.WorkflowID)
	if !strings.Contains(advanceOut, "Incoming Inspection") {
		t.Fatalf("expected advance to inspection:\n%s", advanceOut)
	}

	trailOut := runCommand(t, configPath, "audit", "trail", "--entity-id", inst.WorkflowID)
	if !strings.Contains(trailOut, "transition") || !strings.Contains(trailOut, "create") {
		t.Fatalf("expected create and transition events in trail:\n%s", trailOut)
	}
	if !strings.Contains(trailOut, "tester") {
		t.Fatalf("expected configured operator attribution:\n%s", trailOut)
	}
}

func TestRunProtocolCommand(t *testing.T) {
	configPath := writeTestConfig(t)

	out := runCommand(t, configPath, "run-protocol", "TOL-001",
		"--low", "10", "--high", "20",
		"--reading", "a=12", "--reading", "b=18")
	if !strings.Contains(out, "State: completed") {
		t.Fatalf("expected completed execution:\n%s", out)
	}
	if !strings.Contains(out, "Result: pass") {
		t.Fatalf("expected pass result:\n%s", out)
	}
}

func TestConfigInitCommand(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")

	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config at %s: %v", target, err)
	}

	// A second init against the same path must refuse to overwrite.
	cmd = newRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when config already exists")
	}
}
