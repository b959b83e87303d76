/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package liquidsoap

import (
	"fmt"
	"strings"
)

// Kind enumerates the high-level intents the catalog can translate.
type Kind string

const (
	KindSkip               Kind = "skip"
	KindDisconnectStreamer Kind = "disconnect_streamer"
	KindClearQueue         Kind = "clear_queue"
	KindPlayImmediate      Kind = "play_immediate"
	KindQueueNext          Kind = "queue_next"
	KindQueueEnd           Kind = "queue_end"
)

// Command pairs a wire command line with the predicate that decides whether
// the engine's free-form text reply counts as success. Replies are not
// structured data, so success detection lives here and nowhere else.
type Command struct {
	Kind Kind
	Line string
	ok   func(response string) bool
}

// Accepts reports whether the raw response text satisfies the command's
// success predicate.
func (c Command) Accepts(response string) bool {
	if c.ok == nil {
		return true
	}
	return c.ok(response)
}

// Skip advances the engine past the current source.
func Skip() Command {
	return Command{Kind: KindSkip, Line: "source.skip", ok: acceptNoError}
}

// DisconnectStreamer drops the live input source.
func DisconnectStreamer() Command {
	return Command{Kind: KindDisconnectStreamer, Line: "input_streamer.stop", ok: acceptNoError}
}

// ClearQueue empties the engine-side pending request list.
func ClearQueue() Command {
	return Command{Kind: KindClearQueue, Line: "request.queue.clear()", ok: acceptNoError}
}

// PlayImmediate inserts a media item for interrupting playback.
func PlayImmediate(mediaPath string) Command {
	return Command{
		Kind: KindPlayImmediate,
		Line: fmt.Sprintf("request.dynamic.insert(request.create(%q))", "media:"+mediaPath),
		ok:   acceptNoError,
	}
}

// QueueNext pushes a media item to the front of the engine-side pending list.
func QueueNext(mediaPath string) Command {
	return Command{
		Kind: KindQueueNext,
		Line: fmt.Sprintf("request.queue.push(request.create(%q))", "media:"+mediaPath),
		ok:   acceptRequestID,
	}
}

// QueueEnd appends a media item to the end of the engine-side pending list.
func QueueEnd(mediaPath string) Command {
	return Command{
		Kind: KindQueueEnd,
		Line: fmt.Sprintf("request.queue.append(request.create(%q))", "media:"+mediaPath),
		ok:   acceptRequestID,
	}
}

// acceptNoError treats any reply without an engine error token as success.
func acceptNoError(response string) bool {
	return !strings.Contains(strings.ToUpper(response), "ERROR")
}

// acceptRequestID expects the request id the engine assigns to a queued
// request: a non-empty reply whose first line is a bare number.
func acceptRequestID(response string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(response), "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return false
	}
	for _, r := range first {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
