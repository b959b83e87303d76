package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/skald/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.QueueEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func TestStoreAddAssignsMonotonicSequence(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	stationID := uuid.NewString()

	// Same timestamp for all entries, so ordering must fall back to the
	// insertion sequence.
	cuedAt := time.Now()
	paths := []string{"/music/a.mp3", "/music/b.mp3", "/music/c.mp3", "/music/d.mp3"}
	for _, path := range paths {
		if _, err := store.Add(ctx, stationID, uuid.NewString(), path, cuedAt); err != nil {
			t.Fatalf("add %s: %v", path, err)
		}
	}

	entries, err := store.ListUndispatched(ctx, stationID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != len(paths) {
		t.Fatalf("expected %d entries, got %d", len(paths), len(entries))
	}
	for i, entry := range entries {
		if entry.MediaPath != paths[i] {
			t.Errorf("position %d: got %s, want %s", i, entry.MediaPath, paths[i])
		}
		if i > 0 && entries[i-1].InsertionSeq >= entry.InsertionSeq {
			t.Errorf("sequence not monotonic at position %d: %d then %d",
				i, entries[i-1].InsertionSeq, entry.InsertionSeq)
		}
	}
}

func TestStoreOrdersByCuedAtBeforeSequence(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	stationID := uuid.NewString()

	now := time.Now()
	// Added later but cued earlier, so it must be served first.
	if _, err := store.Add(ctx, stationID, uuid.NewString(), "/music/late-add.mp3", now.Add(time.Minute)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, stationID, uuid.NewString(), "/music/early-cue.mp3", now); err != nil {
		t.Fatalf("add: %v", err)
	}

	entries, err := store.ListUndispatched(ctx, stationID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries[0].MediaPath != "/music/early-cue.mp3" {
		t.Fatalf("expected earliest cue first, got %s", entries[0].MediaPath)
	}
}

func TestStoreSequencesAreIndependentPerStation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	stationA := uuid.NewString()
	stationB := uuid.NewString()

	a1, err := store.Add(ctx, stationA, uuid.NewString(), "/a1.mp3", time.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	a2, err := store.Add(ctx, stationA, uuid.NewString(), "/a2.mp3", time.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b1, err := store.Add(ctx, stationB, uuid.NewString(), "/b1.mp3", time.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if a2.InsertionSeq != a1.InsertionSeq+1 {
		t.Errorf("station A sequence: got %d after %d", a2.InsertionSeq, a1.InsertionSeq)
	}
	if b1.InsertionSeq != 1 {
		t.Errorf("station B should start its own sequence, got %d", b1.InsertionSeq)
	}
}

func TestStoreMarkDispatchedIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	stationID := uuid.NewString()

	entry, err := store.Add(ctx, stationID, uuid.NewString(), "/music/a.mp3", time.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := store.MarkDispatched(ctx, entry.ID); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := store.MarkDispatched(ctx, entry.ID); err != nil {
		t.Fatalf("second mark should be a no-op, got: %v", err)
	}

	entries, err := store.ListUndispatched(ctx, stationID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dispatched entry still listed as pending: %+v", entries)
	}
}

func TestStoreClearUndispatchedKeepsDispatched(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	stationID := uuid.NewString()

	dispatched, err := store.Add(ctx, stationID, uuid.NewString(), "/music/played.mp3", time.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.MarkDispatched(ctx, dispatched.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Add(ctx, stationID, uuid.NewString(), "/music/pending.mp3", time.Now()); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	cleared, err := store.ClearUndispatched(ctx, stationID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared != 3 {
		t.Fatalf("expected 3 cleared, got %d", cleared)
	}

	count, err := store.CountUndispatched(ctx, stationID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty pending queue, got %d", count)
	}
}

func TestStoreClearScopedToStation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	stationA := uuid.NewString()
	stationB := uuid.NewString()
	if _, err := store.Add(ctx, stationA, uuid.NewString(), "/a.mp3", time.Now()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, stationB, uuid.NewString(), "/b.mp3", time.Now()); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := store.ClearUndispatched(ctx, stationA); err != nil {
		t.Fatalf("clear: %v", err)
	}

	count, err := store.CountUndispatched(ctx, stationB)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("clearing one station must not touch another, got %d pending", count)
	}
}
