package media

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/skald/internal/cache"
	"github.com/friendsincode/skald/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Station{}, &models.StationMedia{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Empty Redis address keeps the cache disabled, so every lookup hits
	// the database.
	svc := NewService(db, cache.New(cache.DefaultConfig(), zerolog.Nop()), zerolog.Nop())
	return svc, db
}

func TestResolveScopedToStation(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	stationA := uuid.NewString()
	stationB := uuid.NewString()
	track := &models.StationMedia{
		ID:        uuid.NewString(),
		StationID: stationA,
		UniqueID:  "track-a",
		Title:     "Track A",
		Path:      "/music/a.mp3",
	}
	if err := db.Create(track).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.Resolve(ctx, stationA, "track-a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Path != "/music/a.mp3" {
		t.Fatalf("unexpected path: %s", got.Path)
	}

	// The same reference must not resolve for another station.
	if _, err := svc.Resolve(ctx, stationB, "track-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign station, got %v", err)
	}
}

func TestResolveUnknownMedia(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), uuid.NewString(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStationLookup(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	station := &models.Station{
		ID:          uuid.NewString(),
		Name:        "Test FM",
		BackendType: models.BackendLiquidsoap,
		IsRunning:   true,
	}
	if err := db.Create(station).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.Station(ctx, station.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Name != "Test FM" {
		t.Fatalf("unexpected station: %+v", got)
	}

	if _, err := svc.Station(ctx, uuid.NewString()); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("expected ErrStationNotFound, got %v", err)
	}
}
