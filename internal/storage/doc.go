// Package storage persists labtrace entities in SQLite and exposes the typed
// key→record contract the orchestrator and traceability engine build on.
//
// The Store manages the database connection, schema initialization, the
// single-writer lock file, busy-retry handling, and optimistic version tokens
// on records. Entities of every type (service requests, workflow instances,
// trace events, entity links, protocol execution records, reports) live in one
// table keyed by (entity_type, entity_id) with a JSON record column.
//
// Treat this package as the single source of truth for persistence semantics;
// when the record layout changes, update schema.sql and bump schemaVersion.
package storage
