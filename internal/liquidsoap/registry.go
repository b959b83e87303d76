/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package liquidsoap

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Registry hands out one Client per station, keyed by station id. Clients
// are created lazily and replaced when a station's engine address changes.
type Registry struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry creates an empty client registry.
func NewRegistry(cfg Config, logger zerolog.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// ForStation returns the station's client, creating it on first use.
func (r *Registry) ForStation(stationID, addr string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[stationID]
	if ok && client.addr == addr {
		return client
	}
	if ok {
		// Address changed, e.g. station reconfigured. Drop the old socket.
		_ = client.Close()
	}

	client = NewClient(stationID, addr, r.cfg, r.logger)
	r.clients[stationID] = client
	return client
}

// Call routes a command to the station's client.
func (r *Registry) Call(ctx context.Context, stationID, addr string, cmd Command) (string, error) {
	return r.ForStation(stationID, addr).Call(ctx, cmd)
}

// Close drops all connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	var firstErr error
	for _, c := range clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
