package protocol

import (
	"context"
	"time"
)

// Run is the mutable working state handed to module hooks. Hooks append
// measurements and findings; the runner folds everything onto the Record.
type Run struct {
	Parameters map[string]any

	measurements []Measurement
	findings     []Finding
	now          func() time.Time
}

// AddMeasurement records one acquired data point.
func (r *Run) AddMeasurement(name string, value any, unit string) {
	r.measurements = append(r.measurements, Measurement{
		Name:       name,
		Value:      value,
		Unit:       unit,
		RecordedAt: r.now(),
	})
}

// AddFinding records a validation finding.
func (r *Run) AddFinding(severity Severity, check, message string) {
	r.findings = append(r.findings, Finding{
		Severity: severity,
		Check:    check,
		Message:  message,
	})
}

// Measurements returns the data points recorded so far.
func (r *Run) Measurements() []Measurement {
	return r.measurements
}

// Module is the uniform contract a test protocol implements. The runner
// drives the hooks strictly in order; a hook error fails the run without
// propagating to the caller.
type Module interface {
	// ProtocolID identifies the protocol (e.g. "STC-001").
	ProtocolID() string
	// Setup prepares parameters and equipment state.
	Setup(ctx context.Context, run *Run) error
	// Execute acquires test data.
	Execute(ctx context.Context, run *Run) error
	// Analyze reduces acquired data to structured results.
	Analyze(ctx context.Context, run *Run) (map[string]any, error)
	// Validate checks results and appends findings.
	Validate(ctx context.Context, run *Run) error
	// GenerateReport produces the report payload from results and findings.
	GenerateReport(ctx context.Context, run *Run) (map[string]any, error)
}
