package storage_test

import (
	"context"
	"fmt"
	"testing"

	"labtrace/internal/services"
	"labtrace/internal/testsupport"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	in := sample{Name: "incoming inspection", Count: 3}
	if err := store.Put(ctx, "inspection", "II-1", in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var out sample
	version, err := store.Get(ctx, "inspection", "II-1", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %#v != %#v", out, in)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	var out sample
	_, err := store.Get(context.Background(), "inspection", "nope", &out)
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestPutBumpsVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Put(ctx, "report", "R-1", sample{Name: "v1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "report", "R-1", sample{Name: "v2"}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	var out sample
	version, err := store.Get(ctx, "report", "R-1", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
	if out.Name != "v2" {
		t.Fatalf("expected latest record, got %#v", out)
	}
}

func TestPutVersionedDetectsConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.PutVersioned(ctx, "workflow", "WF-1", sample{Name: "v1"}, 0); err != nil {
		t.Fatalf("initial versioned put failed: %v", err)
	}
	if err := store.PutVersioned(ctx, "workflow", "WF-1", sample{Name: "dup"}, 0); !services.IsVersionConflict(err) {
		t.Fatalf("expected version conflict on duplicate insert, got %v", err)
	}

	if err := store.PutVersioned(ctx, "workflow", "WF-1", sample{Name: "v2"}, 1); err != nil {
		t.Fatalf("versioned update failed: %v", err)
	}
	if err := store.PutVersioned(ctx, "workflow", "WF-1", sample{Name: "stale"}, 1); !services.IsVersionConflict(err) {
		t.Fatalf("expected version conflict on stale token, got %v", err)
	}

	var out sample
	version, err := store.Get(ctx, "workflow", "WF-1", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if version != 2 || out.Name != "v2" {
		t.Fatalf("stale write mutated record: version=%d record=%#v", version, out)
	}
}

func TestPutVersionedMissingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.PutVersioned(context.Background(), "workflow", "missing", sample{}, 3)
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListOrdersByCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("E-%d", i)
		if err := store.Put(ctx, "execution", id, sample{Count: i}); err != nil {
			t.Fatalf("Put %s failed: %v", id, err)
		}
	}

	records, err := store.List(ctx, "execution")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, raw := range records {
		var out sample
		if err := raw.Decode(&out); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if out.Count != i {
			t.Fatalf("unexpected order: record %d has count %d", i, out.Count)
		}
	}

	other, err := store.List(ctx, "unknown-type")
	if err != nil {
		t.Fatalf("List unknown type failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no records, got %d", len(other))
	}
}

func TestDeleteAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Put(ctx, "plan", "EP-1", sample{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "plan", "EP-2", sample{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["plan"] != 2 {
		t.Fatalf("expected 2 plans, got %d", stats["plan"])
	}

	removed, err := store.Delete(ctx, "plan", "EP-1")
	if err != nil || !removed {
		t.Fatalf("Delete failed: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, "plan", "EP-1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed {
		t.Fatal("expected second delete to be a no-op")
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("missing columns reported: %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("integrity check reported failure")
	}
}
