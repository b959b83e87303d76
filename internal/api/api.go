/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skald/internal/queue"
)

// API exposes the station playback control surface over HTTP.
type API struct {
	coordinator *queue.Coordinator
	logger      zerolog.Logger
}

// New creates the API handler set.
func New(coordinator *queue.Coordinator, logger zerolog.Logger) *API {
	return &API{
		coordinator: coordinator,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", a.handleHealth)

	r.Route("/api/v1/stations/{stationID}", func(r chi.Router) {
		r.Post("/backend/{action}", a.handleBackendAction)
		r.Get("/queue", a.handleListQueue)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
