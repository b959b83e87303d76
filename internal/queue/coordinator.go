/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald/internal/events"
	"github.com/friendsincode/skald/internal/liquidsoap"
	"github.com/friendsincode/skald/internal/media"
	"github.com/friendsincode/skald/internal/models"
	"github.com/friendsincode/skald/internal/telemetry"
)

var (
	// ErrBusy reports that another intent held the station for longer than
	// the caller was willing to wait.
	ErrBusy = errors.New("station is busy with another playback intent")

	// ErrUnsupportedBackend reports a station whose backend has no command
	// socket to drive.
	ErrUnsupportedBackend = errors.New("station backend does not support playback control")

	// ErrBackendNotRunning reports a station whose backend is stopped.
	ErrBackendNotRunning = errors.New("station backend is not running")
)

// Position selects where a queued track lands relative to existing pending
// requests.
type Position string

const (
	// PositionNext plays the track after the current one finishes.
	PositionNext Position = "next"
	// PositionEnd appends the track after all pending requests.
	PositionEnd Position = "end"
)

// ParsePosition maps a request parameter to a Position, defaulting to
// PositionNext.
func ParsePosition(s string) (Position, error) {
	switch Position(s) {
	case "", PositionNext:
		return PositionNext, nil
	case PositionEnd:
		return PositionEnd, nil
	default:
		return "", fmt.Errorf("invalid queue position %q", s)
	}
}

// EngineCaller issues one command to a station's automation engine and
// returns the raw response.
type EngineCaller interface {
	Call(ctx context.Context, stationID, addr string, cmd liquidsoap.Command) (string, error)
}

// Resolver looks up stations and their media.
type Resolver interface {
	Station(ctx context.Context, stationID string) (*models.Station, error)
	Resolve(ctx context.Context, stationID, uniqueID string) (*models.StationMedia, error)
}

// Publisher mirrors queue lifecycle events to interested subscribers.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Coordinator owns playback intents for all stations. Each intent for a
// station runs under that station's lock, so store mutations and engine
// commands from concurrent intents never interleave. Store mutations
// happen before engine commands and are not rolled back when the engine
// leg fails.
type Coordinator struct {
	store    *Store
	engine   EngineCaller
	resolver Resolver
	bus      Publisher
	logger   zerolog.Logger

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewCoordinator creates a coordinator over the given store, engine access
// and lookups.
func NewCoordinator(store *Store, engine EngineCaller, resolver Resolver, bus Publisher, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		engine:   engine,
		resolver: resolver,
		bus:      bus,
		logger:   logger.With().Str("component", "queue_coordinator").Logger(),
		locks:    make(map[string]chan struct{}),
	}
}

// lockStation acquires the station's intent lock, waiting no longer than
// the context allows. Stations lock independently of each other.
func (c *Coordinator) lockStation(ctx context.Context, stationID string) (func(), error) {
	c.mu.Lock()
	sem, ok := c.locks[stationID]
	if !ok {
		sem = make(chan struct{}, 1)
		c.locks[stationID] = sem
	}
	c.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

// station loads the station and verifies it can accept playback commands.
func (c *Coordinator) station(ctx context.Context, stationID string) (*models.Station, error) {
	station, err := c.resolver.Station(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if station.BackendType != models.BackendLiquidsoap {
		return nil, fmt.Errorf("%w: backend is %q", ErrUnsupportedBackend, station.BackendType)
	}
	if !station.IsRunning {
		return nil, ErrBackendNotRunning
	}
	return station, nil
}

// QueueMedia resolves and queues each media reference in order, dispatching
// each to the engine at the requested position. One bad reference does not
// abort the rest; the result itemizes every reference as queued or failed.
func (c *Coordinator) QueueMedia(ctx context.Context, stationID string, mediaIDs []string, position Position) (*QueueMediaResult, error) {
	station, err := c.station(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("queue_media", "failed").Inc()
		return nil, err
	}

	unlock, err := c.lockStation(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("queue_media", "busy").Inc()
		return nil, err
	}
	defer unlock()

	result := &QueueMediaResult{}
	for _, mediaID := range mediaIDs {
		item, itemErr := c.queueOne(ctx, station, mediaID, position)
		if itemErr != nil {
			result.Failed = append(result.Failed, *itemErr)
			continue
		}
		result.Queued = append(result.Queued, *item)
	}

	result.Message = fmt.Sprintf("%d track(s) queued", len(result.Queued))
	if len(result.Failed) > 0 {
		result.Message = fmt.Sprintf("%d track(s) queued, %d failed", len(result.Queued), len(result.Failed))
	}

	telemetry.QueueIntentsTotal.WithLabelValues("queue_media", queueOutcome(result)).Inc()
	c.updatePendingGauge(ctx, stationID)
	return result, nil
}

// queueOne handles a single reference of a queue intent: resolve, persist,
// dispatch. A store or resolve failure yields an ItemError and no engine
// call; an engine failure leaves the entry queued locally and undispatched.
func (c *Coordinator) queueOne(ctx context.Context, station *models.Station, mediaID string, position Position) (*QueuedItem, *ItemError) {
	m, err := c.resolver.Resolve(ctx, station.ID, mediaID)
	if err != nil {
		reason := "resolve_failed"
		if errors.Is(err, media.ErrNotFound) {
			reason = "media_not_found"
		}
		c.logger.Warn().Err(err).
			Str("station_id", station.ID).
			Str("media_id", mediaID).
			Msg("Media reference could not be resolved")
		return nil, &ItemError{MediaID: mediaID, Reason: reason}
	}

	entry, err := c.store.Add(ctx, station.ID, m.ID, m.Path, time.Now())
	if err != nil {
		c.logger.Error().Err(err).
			Str("station_id", station.ID).
			Str("media_id", mediaID).
			Msg("Failed to persist queue entry")
		return nil, &ItemError{MediaID: mediaID, Reason: "queue_store_failed"}
	}

	item := &QueuedItem{
		EntryID: entry.ID,
		MediaID: m.ID,
		Title:   m.Title,
		Artist:  m.Artist,
	}

	cmd := liquidsoap.QueueNext(m.Path)
	if position == PositionEnd {
		cmd = liquidsoap.QueueEnd(m.Path)
	}

	if _, err := c.engine.Call(ctx, station.ID, station.EngineAddr, cmd); err != nil {
		c.logger.Warn().Err(err).
			Str("station_id", station.ID).
			Str("entry_id", entry.ID).
			Msg("Entry queued locally but engine dispatch failed")
		item.Error = err.Error()
		return item, nil
	}

	if err := c.store.MarkDispatched(ctx, entry.ID); err != nil {
		c.logger.Error().Err(err).
			Str("station_id", station.ID).
			Str("entry_id", entry.ID).
			Msg("Engine accepted entry but dispatch flag update failed")
	} else {
		item.Dispatched = true
	}

	c.bus.Publish(events.EventMediaQueued, events.Payload{
		"station_id": station.ID,
		"media_id":   m.ID,
		"entry_id":   entry.ID,
		"position":   string(position),
	})
	return item, nil
}

// PlayMediaImmediate interrupts current playback with the given track. The
// pending local queue is cleared first so the new entry is the sole
// undispatched entry before the engine is told to interrupt. An engine
// failure after that point leaves the entry queued and is reported via
// EngineConfirmed, not as an error.
func (c *Coordinator) PlayMediaImmediate(ctx context.Context, stationID, mediaID string) (*PlayMediaResult, error) {
	station, err := c.station(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "failed").Inc()
		return nil, err
	}

	m, err := c.resolver.Resolve(ctx, stationID, mediaID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "failed").Inc()
		return nil, err
	}

	unlock, err := c.lockStation(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "busy").Inc()
		return nil, err
	}
	defer unlock()

	cleared, err := c.store.ClearUndispatched(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "failed").Inc()
		return nil, err
	}

	entry, err := c.store.Add(ctx, stationID, m.ID, m.Path, time.Now())
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "failed").Inc()
		return nil, err
	}

	result := &PlayMediaResult{
		Entry: QueuedItem{
			EntryID: entry.ID,
			MediaID: m.ID,
			Title:   m.Title,
			Artist:  m.Artist,
		},
	}

	resp, err := c.engine.Call(ctx, stationID, station.EngineAddr, liquidsoap.PlayImmediate(m.Path))
	if err != nil {
		c.logger.Warn().Err(err).
			Str("station_id", stationID).
			Str("entry_id", entry.ID).
			Int64("cleared", cleared).
			Msg("Track queued but immediate playback was not confirmed")
		result.Message = "Track queued, but immediate playback failed: " + err.Error()
		telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "partial").Inc()
		c.updatePendingGauge(ctx, stationID)
		return result, nil
	}

	if err := c.store.MarkDispatched(ctx, entry.ID); err != nil {
		c.logger.Error().Err(err).
			Str("station_id", stationID).
			Str("entry_id", entry.ID).
			Msg("Engine accepted entry but dispatch flag update failed")
	} else {
		result.Entry.Dispatched = true
	}

	result.EngineConfirmed = true
	result.Message = "Track is now playing."
	result.Response = resp

	c.bus.Publish(events.EventMediaPlayed, events.Payload{
		"station_id": stationID,
		"media_id":   m.ID,
		"entry_id":   entry.ID,
		"cleared":    cleared,
	})

	telemetry.QueueIntentsTotal.WithLabelValues("play_immediate", "ok").Inc()
	c.updatePendingGauge(ctx, stationID)
	return result, nil
}

// Skip tells the engine to end the current track. No store mutation is
// involved.
func (c *Coordinator) Skip(ctx context.Context, stationID string) (*ActionResult, error) {
	return c.engineAction(ctx, stationID, "skip", liquidsoap.Skip(), "Song skipped.", events.EventSongSkipped)
}

// DisconnectStreamer tells the engine to drop the live streamer input.
func (c *Coordinator) DisconnectStreamer(ctx context.Context, stationID string) (*ActionResult, error) {
	return c.engineAction(ctx, stationID, "disconnect_streamer", liquidsoap.DisconnectStreamer(), "Streamer disconnected.", events.EventStreamerDisconnected)
}

// engineAction runs a store-less intent under the station lock.
func (c *Coordinator) engineAction(ctx context.Context, stationID, intent string, cmd liquidsoap.Command, message string, eventType events.EventType) (*ActionResult, error) {
	station, err := c.station(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues(intent, "failed").Inc()
		return nil, err
	}

	unlock, err := c.lockStation(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues(intent, "busy").Inc()
		return nil, err
	}
	defer unlock()

	resp, err := c.engine.Call(ctx, stationID, station.EngineAddr, cmd)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues(intent, "failed").Inc()
		return nil, err
	}

	c.bus.Publish(eventType, events.Payload{"station_id": stationID})
	telemetry.QueueIntentsTotal.WithLabelValues(intent, "ok").Inc()
	return &ActionResult{Success: true, Message: message, Response: resp}, nil
}

// ClearQueue removes all pending local entries, then asks the engine to
// drop its request queue. The local queue stays cleared even when the
// engine leg fails, so a retry only has engine work left to do.
func (c *Coordinator) ClearQueue(ctx context.Context, stationID string) (*ActionResult, error) {
	station, err := c.station(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("clear_queue", "failed").Inc()
		return nil, err
	}

	unlock, err := c.lockStation(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("clear_queue", "busy").Inc()
		return nil, err
	}
	defer unlock()

	cleared, err := c.store.ClearUndispatched(ctx, stationID)
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("clear_queue", "failed").Inc()
		return nil, err
	}
	c.updatePendingGauge(ctx, stationID)

	resp, err := c.engine.Call(ctx, stationID, station.EngineAddr, liquidsoap.ClearQueue())
	if err != nil {
		telemetry.QueueIntentsTotal.WithLabelValues("clear_queue", "partial").Inc()
		return nil, fmt.Errorf("local queue cleared (%d entries) but engine clear failed: %w", cleared, err)
	}

	c.bus.Publish(events.EventQueueCleared, events.Payload{
		"station_id": stationID,
		"cleared":    cleared,
	})

	telemetry.QueueIntentsTotal.WithLabelValues("clear_queue", "ok").Inc()
	return &ActionResult{
		Success:  true,
		Message:  fmt.Sprintf("Queue cleared (%d pending entries removed).", cleared),
		Response: resp,
	}, nil
}

// ListPending returns the station's undispatched entries in serving order.
func (c *Coordinator) ListPending(ctx context.Context, stationID string) ([]models.QueueEntry, error) {
	if _, err := c.resolver.Station(ctx, stationID); err != nil {
		return nil, err
	}
	return c.store.ListUndispatched(ctx, stationID)
}

func (c *Coordinator) updatePendingGauge(ctx context.Context, stationID string) {
	count, err := c.store.CountUndispatched(ctx, stationID)
	if err != nil {
		return
	}
	telemetry.QueueEntriesPending.WithLabelValues(stationID).Set(float64(count))
}

func queueOutcome(result *QueueMediaResult) string {
	switch {
	case len(result.Failed) == 0 && fullyDispatched(result.Queued):
		return "ok"
	case len(result.Queued) == 0:
		return "failed"
	default:
		return "partial"
	}
}

func fullyDispatched(items []QueuedItem) bool {
	for _, item := range items {
		if !item.Dispatched {
			return false
		}
	}
	return true
}
