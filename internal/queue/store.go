/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/skald/internal/models"
)

// Store is the durable record of pending queue entries. Undispatched
// entries for a station are served in (cued_at, insertion_seq) ascending
// order; insertion_seq breaks ties between entries cued within timestamp
// resolution.
type Store struct {
	db *gorm.DB
}

// NewStore creates a queue store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Add creates and persists a new entry with the next insertion sequence for
// the station. The sequence read and the insert commit together.
func (s *Store) Add(ctx context.Context, stationID, mediaID, mediaPath string, cuedAt time.Time) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		ID:        uuid.NewString(),
		StationID: stationID,
		MediaID:   mediaID,
		MediaPath: mediaPath,
		CuedAt:    cuedAt.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq sql.NullInt64
		if err := tx.Model(&models.QueueEntry{}).
			Where("station_id = ?", stationID).
			Select("MAX(insertion_seq)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		entry.InsertionSeq = maxSeq.Int64 + 1
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("add queue entry: %w", err)
	}

	return entry, nil
}

// ListUndispatched returns entries not yet handed to the engine, in serving
// order.
func (s *Store) ListUndispatched(ctx context.Context, stationID string) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND dispatched = ?", stationID, false).
		Order("cued_at ASC, insertion_seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list undispatched entries: %w", err)
	}
	return entries, nil
}

// MarkDispatched flips the entry's dispatched flag. Idempotent: flipping an
// already-dispatched entry is a no-op, not an error.
func (s *Store) MarkDispatched(ctx context.Context, entryID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("id = ?", entryID).
		Update("dispatched", true).Error
	if err != nil {
		return fmt.Errorf("mark entry dispatched: %w", err)
	}
	return nil
}

// ClearUndispatched removes all entries not yet handed to the engine for
// the station and reports how many were removed.
func (s *Store) ClearUndispatched(ctx context.Context, stationID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("station_id = ? AND dispatched = ?", stationID, false).
		Delete(&models.QueueEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear undispatched entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Remove deletes a single entry.
func (s *Store) Remove(ctx context.Context, entryID string) error {
	err := s.db.WithContext(ctx).
		Delete(&models.QueueEntry{}, "id = ?", entryID).Error
	if err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}

// CountUndispatched returns the number of pending entries for the station.
func (s *Store) CountUndispatched(ctx context.Context, stationID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("station_id = ? AND dispatched = ?", stationID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count undispatched entries: %w", err)
	}
	return count, nil
}
