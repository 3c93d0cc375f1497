// Package services defines shared utilities consumed by the workflow
// orchestrator, the traceability engine, and protocol execution.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper so failures carry a stable
//     classification (not found, invalid transition, integrity violation,
//     persistence failure) across package boundaries.
//   - Context helpers that stamp workflow IDs, stage names, and correlation
//     identifiers for logging.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
