/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

// QueuedItem describes one media reference accepted into the local queue.
// Dispatched reports whether the engine also accepted it; a false value
// with a non-empty Error is the "queued locally, not yet handed to the
// engine" partial outcome.
type QueuedItem struct {
	EntryID    string `json:"entry_id"`
	MediaID    string `json:"media_id"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Dispatched bool   `json:"dispatched"`
	Error      string `json:"error,omitempty"`
}

// ItemError describes one media reference that was not queued at all.
type ItemError struct {
	MediaID string `json:"media_id"`
	Reason  string `json:"reason"`
}

// QueueMediaResult reports a multi-item queue intent. Partial success is
// never collapsed: every requested reference appears either in Queued or
// in Failed.
type QueueMediaResult struct {
	Queued  []QueuedItem `json:"queued"`
	Failed  []ItemError  `json:"failed,omitempty"`
	Message string       `json:"message"`
}

// PlayMediaResult reports an immediate-play intent. EngineConfirmed is
// false when the entry was queued locally but the engine did not confirm
// the interrupt, which is distinct from total failure.
type PlayMediaResult struct {
	Entry           QueuedItem `json:"entry"`
	EngineConfirmed bool       `json:"engine_confirmed"`
	Message         string     `json:"message"`
	Response        string     `json:"response,omitempty"`
}

// ActionResult reports a store-less engine action (skip, disconnect,
// clear).
type ActionResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response string `json:"response,omitempty"`
}
