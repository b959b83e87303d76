/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skald/internal/cache"
	"github.com/friendsincode/skald/internal/models"
)

// ErrNotFound means the media reference does not resolve for the station.
var ErrNotFound = errors.New("media not found")

// ErrStationNotFound means the station id does not exist.
var ErrStationNotFound = errors.New("station not found")

// Service resolves media references and station rows, with a read-through
// Redis cache in front of the database.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewService creates a media resolution service.
func NewService(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "media").Logger(),
	}
}

// Resolve maps a media reference to a playable media row for the station.
// The reference is the media item's unique id; rows are scoped per station,
// so the same reference never resolves across stations.
func (s *Service) Resolve(ctx context.Context, stationID, uniqueID string) (*models.StationMedia, error) {
	if media, ok := s.cache.GetMedia(ctx, stationID, uniqueID); ok {
		return media, nil
	}

	var media models.StationMedia
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND unique_id = ?", stationID, uniqueID).
		First(&media).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve media %s: %w", uniqueID, err)
	}

	s.cache.SetMedia(ctx, &media)
	return &media, nil
}

// Station looks up a station row by id.
func (s *Service) Station(ctx context.Context, stationID string) (*models.Station, error) {
	if station, ok := s.cache.GetStation(ctx, stationID); ok {
		return station, nil
	}

	var station models.Station
	err := s.db.WithContext(ctx).First(&station, "id = ?", stationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup station %s: %w", stationID, err)
	}

	s.cache.SetStation(ctx, &station)
	return &station, nil
}
