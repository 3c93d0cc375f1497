package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// Entity type keys under which the engine persists its own records.
const (
	eventEntityType = "trace_event"
	linkEntityType  = "entity_link"
)

// Common event types recorded by the core components.
const (
	EventCreate     = "create"
	EventUpdate     = "update"
	EventTransition = "transition"
	EventApprove    = "approve"
	EventReject     = "reject"
	EventCancel     = "cancel"
)

// Event is an immutable, hashed record of one action taken on one entity.
type Event struct {
	EventID    string         `json:"event_id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	User       string         `json:"user"`
	Data       map[string]any `json:"data,omitempty"`
	DataHash   string         `json:"data_hash"`
}

// canonicalHash computes the SHA-256 hex digest of the RFC 8785 canonical
// JSON form of data. A nil payload hashes as the empty object so the digest
// is always present.
func canonicalHash(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize event data: %w", err)
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}
