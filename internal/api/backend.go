/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skald/internal/liquidsoap"
	"github.com/friendsincode/skald/internal/media"
	"github.com/friendsincode/skald/internal/queue"
)

type playMediaRequest struct {
	MediaID   string `json:"media_id"`
	Immediate bool   `json:"immediate"`
}

type queueMediaRequest struct {
	MediaIDs []string `json:"media_ids"`
	Position string   `json:"position"`
}

// handleBackendAction dispatches a playback intent to the coordinator. The
// action name comes from the URL; play-media and queue-media take a JSON
// body, the rest are body-less.
func (a *API) handleBackendAction(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	action := chi.URLParam(r, "action")
	ctx := r.Context()

	switch action {
	case "skip":
		res, err := a.coordinator.Skip(ctx, stationID)
		a.respond(w, stationID, action, res, err)

	case "disconnect":
		res, err := a.coordinator.DisconnectStreamer(ctx, stationID)
		a.respond(w, stationID, action, res, err)

	case "clear-queue":
		res, err := a.coordinator.ClearQueue(ctx, stationID)
		a.respond(w, stationID, action, res, err)

	case "play-media":
		var req playMediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MediaID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request_body")
			return
		}
		if !req.Immediate {
			res, err := a.coordinator.QueueMedia(ctx, stationID, []string{req.MediaID}, queue.PositionNext)
			a.respond(w, stationID, action, res, err)
			return
		}
		res, err := a.coordinator.PlayMediaImmediate(ctx, stationID, req.MediaID)
		a.respond(w, stationID, action, res, err)

	case "queue-media":
		var req queueMediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.MediaIDs) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request_body")
			return
		}
		position, err := queue.ParsePosition(req.Position)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_position")
			return
		}
		res, err := a.coordinator.QueueMedia(ctx, stationID, req.MediaIDs, position)
		a.respond(w, stationID, action, res, err)

	default:
		writeError(w, http.StatusNotFound, "unknown_action")
	}
}

func (a *API) handleListQueue(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")

	entries, err := a.coordinator.ListPending(r.Context(), stationID)
	if err != nil {
		a.respond(w, stationID, "list-queue", nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// respond maps coordinator errors onto HTTP statuses. Engine trouble maps
// to gateway statuses because the engine sits behind this service.
func (a *API) respond(w http.ResponseWriter, stationID, action string, result any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}

	a.logger.Warn().Err(err).
		Str("station_id", stationID).
		Str("action", action).
		Msg("Backend action failed")

	switch {
	case errors.Is(err, media.ErrStationNotFound):
		writeError(w, http.StatusNotFound, "station_not_found")
	case errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, "media_not_found")
	case errors.Is(err, queue.ErrUnsupportedBackend):
		writeError(w, http.StatusBadRequest, "unsupported_backend")
	case errors.Is(err, queue.ErrBackendNotRunning):
		writeError(w, http.StatusConflict, "backend_not_running")
	case errors.Is(err, queue.ErrBusy):
		writeError(w, http.StatusConflict, "station_busy")
	case errors.Is(err, liquidsoap.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "engine_timeout")
	case errors.Is(err, liquidsoap.ErrNotConnected):
		writeError(w, http.StatusBadGateway, "engine_unavailable")
	case errors.Is(err, liquidsoap.ErrEngineRejected):
		writeError(w, http.StatusBadGateway, "engine_rejected")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
