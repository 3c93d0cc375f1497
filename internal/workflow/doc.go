// Package workflow drives laboratory test jobs through their fixed stage
// sequence and is the single mutation point for workflow instances.
//
// The stage graph is data, not code: allowed transitions live in an explicit
// table so every (stage, outcome) pair can be enumerated in tests. The one
// conditional branch is incoming inspection, which parks the workflow on hold
// instead of advancing when the sample is not accepted. Every successful
// transition appends one stage-history entry, persists the whole instance
// under an optimistic version token, and records a traceability event before
// the caller sees success.
package workflow
