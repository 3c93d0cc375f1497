package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"labtrace/internal/services"
)

// Raw is an entity record as stored, before decoding into a concrete type.
type Raw struct {
	EntityType string
	EntityID   string
	Record     json.RawMessage
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the raw record into out.
func (r Raw) Decode(out any) error {
	if err := json.Unmarshal(r.Record, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.EntityType, r.EntityID, err)
	}
	return nil
}

// Get fetches a record by type and identifier, unmarshals it into out, and
// returns its version token. A missing record yields a not-found error.
func (s *Store) Get(ctx context.Context, entityType, entityID string, out any) (int64, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT record, version FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	)

	var (
		record  string
		version int64
	)
	if err := row.Scan(&record, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, services.Wrap(services.ErrNotFound, "storage", "get", entityType+"/"+entityID, nil)
		}
		return 0, services.Wrap(services.ErrPersistence, "storage", "get", entityType+"/"+entityID, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(record), out); err != nil {
			return 0, services.Wrap(services.ErrPersistence, "storage", "decode", entityType+"/"+entityID, err)
		}
	}
	return version, nil
}

// Exists reports whether a record is present without decoding it.
func (s *Store) Exists(ctx context.Context, entityType, entityID string) (bool, error) {
	_, err := s.Get(ctx, entityType, entityID, nil)
	if err == nil {
		return true, nil
	}
	if services.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Put inserts or replaces a record unconditionally, bumping its version.
func (s *Store) Put(ctx context.Context, entityType, entityID string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storage", "encode", entityType+"/"+entityID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO entities (entity_type, entity_id, record, version, created_at, updated_at)
         VALUES (?, ?, ?, 1, ?, ?)
         ON CONFLICT (entity_type, entity_id)
         DO UPDATE SET record = excluded.record, version = entities.version + 1, updated_at = excluded.updated_at`,
		entityType, entityID, string(payload), now, now,
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storage", "put", entityType+"/"+entityID, err)
	}
	return nil
}

// PutVersioned writes a record only when its stored version still matches
// expectedVersion. Pass zero to require that the record does not exist yet.
// A stale token yields a version-conflict error so concurrent writers cannot
// silently clobber each other.
func (s *Store) PutVersioned(ctx context.Context, entityType, entityID string, record any, expectedVersion int64) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storage", "encode", entityType+"/"+entityID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if expectedVersion == 0 {
		_, err = s.execWithRetry(
			ctx,
			`INSERT INTO entities (entity_type, entity_id, record, version, created_at, updated_at)
             VALUES (?, ?, ?, 1, ?, ?)`,
			entityType, entityID, string(payload), now, now,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return services.Wrap(services.ErrVersionConflict, "storage", "put", entityType+"/"+entityID+" already exists", nil)
			}
			return services.Wrap(services.ErrPersistence, "storage", "put", entityType+"/"+entityID, err)
		}
		return nil
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE entities SET record = ?, version = version + 1, updated_at = ?
         WHERE entity_type = ? AND entity_id = ? AND version = ?`,
		string(payload), now, entityType, entityID, expectedVersion,
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storage", "put", entityType+"/"+entityID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storage", "put", entityType+"/"+entityID, err)
	}
	if affected == 0 {
		exists, existsErr := s.Exists(ctx, entityType, entityID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return services.Wrap(services.ErrNotFound, "storage", "put", entityType+"/"+entityID, nil)
		}
		return services.Wrap(services.ErrVersionConflict, "storage", "put",
			fmt.Sprintf("%s/%s stale version %d", entityType, entityID, expectedVersion), nil)
	}
	return nil
}

// List returns all records of a type ordered by creation time.
func (s *Store) List(ctx context.Context, entityType string) ([]Raw, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT entity_type, entity_id, record, version, created_at, updated_at
         FROM entities WHERE entity_type = ? ORDER BY created_at, entity_id`,
		entityType,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "storage", "list", entityType, err)
	}
	defer rows.Close()

	var records []Raw
	for rows.Next() {
		raw, err := scanRaw(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "storage", "list", entityType, err)
		}
		records = append(records, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "storage", "list", entityType, err)
	}
	return records, nil
}

// Delete removes a record by type and identifier.
func (s *Store) Delete(ctx context.Context, entityType, entityID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM entities WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "storage", "delete", entityType+"/"+entityID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "storage", "delete", entityType+"/"+entityID, err)
	}
	return affected > 0, nil
}

// Stats returns a count of records grouped by entity type.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT entity_type, COUNT(1) FROM entities GROUP BY entity_type`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "storage", "stats", "", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "storage", "stats", "", err)
		}
		stats[entityType] = count
	}
	return stats, rows.Err()
}

func scanRaw(scanner interface{ Scan(dest ...any) error }) (Raw, error) {
	var (
		raw        Raw
		record     string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&raw.EntityType, &raw.EntityID, &record, &raw.Version, &createdRaw, &updatedRaw); err != nil {
		return Raw{}, err
	}
	raw.Record = json.RawMessage(record)
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		raw.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		raw.UpdatedAt = updated
	}
	return raw, nil
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// SQLITE_CONSTRAINT
		if coder.Code() == 19 {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT")
}
