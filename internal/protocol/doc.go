// Package protocol implements the per-run execution lifecycle for test
// protocols. A Runner drives a Module through setup, data acquisition,
// analysis, validation and report generation, persisting the execution record
// after every phase and recording each transition on the trace ledger.
//
// Phase errors and critical validation findings terminate the run in the
// Failed state without surfacing as errors to the caller; lower-severity
// findings are retained on the record and reflected in the pass/fail summary.
package protocol
