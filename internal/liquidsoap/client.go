/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package liquidsoap speaks the engine's line-oriented command socket: one
// newline-terminated command out, free-form text back until the END marker.
package liquidsoap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald/internal/telemetry"
)

// responseTerminator ends every engine reply.
const responseTerminator = "END"

// Config holds per-client socket configuration.
type Config struct {
	CommandTimeout time.Duration
	DialTimeout    time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		CommandTimeout: 5 * time.Second,
		DialTimeout:    3 * time.Second,
	}
}

// Client owns one command connection to a station's engine. All traffic on
// the connection is serialized: a second caller blocks until the first
// call's full request/response exchange is done, so responses can never
// interleave on the wire.
type Client struct {
	stationID string
	addr      string
	cfg       Config
	logger    zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient creates a client for one station's command socket. The
// connection is established lazily on the first Call.
func NewClient(stationID, addr string, cfg Config, logger zerolog.Logger) *Client {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultConfig().CommandTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	return &Client{
		stationID: stationID,
		addr:      addr,
		cfg:       cfg,
		logger: logger.With().
			Str("component", "liquidsoap_client").
			Str("station_id", stationID).
			Logger(),
	}
}

// Call sends one command line and reads the response until the END marker.
// Calls for the same client queue behind each other. A failed exchange on a
// previously established connection triggers one reconnect-and-retry; a
// timeout closes the connection and is surfaced without retry.
func (c *Client) Call(ctx context.Context, cmd Command) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	resp, err := c.exchange(ctx, cmd)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrNotConnected):
		outcome = "not_connected"
	case errors.Is(err, ErrEngineRejected):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	telemetry.EngineCommandsTotal.WithLabelValues(string(cmd.Kind), outcome).Inc()
	telemetry.EngineCommandDuration.WithLabelValues(string(cmd.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn().Err(err).Str("command", string(cmd.Kind)).Msg("engine command failed")
		return "", err
	}

	c.logger.Debug().Str("command", string(cmd.Kind)).Msg("engine command ok")
	return resp, nil
}

// Close drops the connection. The next Call re-establishes it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropConn()
}

func (c *Client) exchange(ctx context.Context, cmd Command) (string, error) {
	deadline := time.Now().Add(c.cfg.CommandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	reused := c.conn != nil
	if err := c.ensureConn(); err != nil {
		return "", classifyDialError(err)
	}

	resp, err := c.roundTrip(deadline, cmd.Line)
	if err != nil {
		_ = c.dropConn()

		if isTimeout(err) {
			// Connection is suspect after a timeout; already dropped.
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		if !reused {
			return "", fmt.Errorf("engine exchange: %w", err)
		}

		// Stale connection: reconnect once and retry.
		telemetry.EngineReconnectsTotal.WithLabelValues(c.stationID).Inc()
		c.logger.Info().Msg("reconnecting to engine after stale connection")

		if err := c.ensureConn(); err != nil {
			return "", classifyDialError(err)
		}
		resp, err = c.roundTrip(deadline, cmd.Line)
		if err != nil {
			_ = c.dropConn()
			if isTimeout(err) {
				return "", fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return "", fmt.Errorf("engine exchange after reconnect: %w", err)
		}
	}

	if !cmd.Accepts(resp) {
		return "", &RejectionError{Command: cmd.Line, Response: resp}
	}

	return resp, nil
}

// ensureConn lazily establishes the connection.
func (c *Client) ensureConn() error {
	if c.conn != nil {
		return nil
	}

	network := "tcp"
	if strings.Contains(c.addr, "/") {
		network = "unix"
	}

	conn, err := net.DialTimeout(network, c.addr, c.cfg.DialTimeout)
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.logger.Debug().Str("addr", c.addr).Msg("connected to engine command socket")
	return nil
}

func (c *Client) dropConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// roundTrip writes one command line and reads lines until the terminator.
func (c *Client) roundTrip(deadline time.Time, line string) (string, error) {
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return "", err
	}

	var lines []string
	for {
		raw, err := c.reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text := strings.TrimRight(raw, "\r\n")
		if text == responseTerminator {
			break
		}
		lines = append(lines, text)
	}

	return strings.Join(lines, "\n"), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}

// classifyDialError maps connection establishment failures onto the error
// taxonomy: a timeout is "slow", everything else means the engine process
// is not reachable.
func classifyDialError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNotConnected, err)
}
