// Package trace records the audit trail and entity lineage for laboratory
// workflows.
//
// Every action taken on an entity is captured as an immutable event carrying a
// SHA-256 digest of its canonicalized payload (RFC 8785 JSON), so any consumer
// can later verify that a historical record was not altered. Entity
// relationships form a directed acyclic graph from earlier-created entities to
// later ones; upstream lineage is computed by reverse scan rather than stored,
// avoiding dual-maintenance inconsistency.
//
// Per-event hashing detects tampering with individual records but not silent
// deletion; a hash-chained ledger would be required for adversarial
// multi-party settings, which are out of scope here.
package trace
