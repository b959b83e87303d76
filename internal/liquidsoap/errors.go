/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package liquidsoap

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means the engine command socket is unreachable,
	// typically because the engine process is not running.
	ErrNotConnected = errors.New("engine not connected")

	// ErrTimeout means the engine accepted the connection but did not
	// produce a full response within the command timeout.
	ErrTimeout = errors.New("engine command timed out")

	// ErrEngineRejected means a response arrived but failed the command's
	// success predicate.
	ErrEngineRejected = errors.New("engine rejected command")
)

// RejectionError carries the raw response text for diagnostics when the
// engine answers but the answer fails the command's success predicate.
type RejectionError struct {
	Command  string
	Response string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("engine rejected %q: %s", e.Command, e.Response)
}

func (e *RejectionError) Unwrap() error {
	return ErrEngineRejected
}
