package liquidsoap

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeEngine is a minimal command-socket server: it reads newline-terminated
// commands and answers with canned lines followed by the END marker.
type fakeEngine struct {
	t  *testing.T
	ln net.Listener

	respond      func(command string) []string
	delay        time.Duration
	neverRespond bool
	closeAfter   int32 // close the connection after this many responses (0 = never)

	mu       sync.Mutex
	commands []string
	conns    int32

	inFlight    int32
	maxInFlight int32
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	fe := &fakeEngine{
		t:  t,
		ln: ln,
		respond: func(string) []string {
			return []string{"OK"}
		},
	}
	t.Cleanup(func() { _ = ln.Close() })

	go fe.acceptLoop()
	return fe
}

func (fe *fakeEngine) addr() string {
	return fe.ln.Addr().String()
}

func (fe *fakeEngine) acceptLoop() {
	for {
		conn, err := fe.ln.Accept()
		if err != nil {
			return
		}
		atomic.AddInt32(&fe.conns, 1)
		go fe.serve(conn)
	}
}

func (fe *fakeEngine) serve(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	var served int32
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		command := strings.TrimRight(line, "\r\n")

		fe.mu.Lock()
		fe.commands = append(fe.commands, command)
		fe.mu.Unlock()

		cur := atomic.AddInt32(&fe.inFlight, 1)
		for {
			max := atomic.LoadInt32(&fe.maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt32(&fe.maxInFlight, max, cur) {
				break
			}
		}

		if fe.neverRespond {
			atomic.AddInt32(&fe.inFlight, -1)
			continue
		}
		if fe.delay > 0 {
			time.Sleep(fe.delay)
		}

		for _, respLine := range fe.respond(command) {
			if _, err := conn.Write([]byte(respLine + "\r\n")); err != nil {
				atomic.AddInt32(&fe.inFlight, -1)
				return
			}
		}
		if _, err := conn.Write([]byte("END\r\n")); err != nil {
			atomic.AddInt32(&fe.inFlight, -1)
			return
		}

		atomic.AddInt32(&fe.inFlight, -1)

		served++
		if fe.closeAfter > 0 && served >= fe.closeAfter {
			return
		}
	}
}

func (fe *fakeEngine) receivedCommands() []string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]string(nil), fe.commands...)
}

func testClient(t *testing.T, addr string, commandTimeout time.Duration) *Client {
	t.Helper()
	cfg := Config{CommandTimeout: commandTimeout, DialTimeout: time.Second}
	c := NewClient("station-1", addr, cfg, zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientReadsResponseUntilTerminator(t *testing.T) {
	t.Parallel()

	fe := newFakeEngine(t)
	fe.respond = func(string) []string {
		return []string{"Done", "with love"}
	}

	c := testClient(t, fe.addr(), time.Second)

	resp, err := c.Call(context.Background(), Skip())
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp != "Done\nwith love" {
		t.Fatalf("unexpected response: %q", resp)
	}

	got := fe.receivedCommands()
	if len(got) != 1 || got[0] != "source.skip" {
		t.Fatalf("unexpected commands on the wire: %v", got)
	}
}

func TestClientTimesOutWhenEngineHangs(t *testing.T) {
	t.Parallel()

	fe := newFakeEngine(t)
	fe.neverRespond = true

	c := testClient(t, fe.addr(), 100*time.Millisecond)

	_, err := c.Call(context.Background(), Skip())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestClientReportsNotConnected(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := testClient(t, addr, time.Second)

	_, err = c.Call(context.Background(), Skip())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientReconnectsOnceAfterStaleConnection(t *testing.T) {
	t.Parallel()

	fe := newFakeEngine(t)
	fe.closeAfter = 1

	c := testClient(t, fe.addr(), time.Second)

	if _, err := c.Call(context.Background(), Skip()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// The server dropped the connection after the first response. The next
	// call must transparently reconnect and succeed.
	if _, err := c.Call(context.Background(), ClearQueue()); err != nil {
		t.Fatalf("second call after disconnect: %v", err)
	}

	if got := atomic.LoadInt32(&fe.conns); got != 2 {
		t.Fatalf("expected 2 connections (one reconnect), got %d", got)
	}
}

func TestClientSurfacesEngineRejection(t *testing.T) {
	t.Parallel()

	fe := newFakeEngine(t)
	fe.respond = func(string) []string {
		return []string{"ERROR: unknown command"}
	}

	c := testClient(t, fe.addr(), time.Second)

	_, err := c.Call(context.Background(), Skip())
	if !errors.Is(err, ErrEngineRejected) {
		t.Fatalf("expected ErrEngineRejected, got %v", err)
	}

	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %T", err)
	}
	if !strings.Contains(rej.Response, "unknown command") {
		t.Fatalf("rejection should carry raw response, got %q", rej.Response)
	}
}

func TestClientSerializesConcurrentCalls(t *testing.T) {
	t.Parallel()

	fe := newFakeEngine(t)
	fe.delay = 30 * time.Millisecond
	fe.respond = func(string) []string {
		return []string{"42"}
	}

	c := testClient(t, fe.addr(), 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Call(context.Background(), QueueNext("/music/a.mp3")); err != nil {
				t.Errorf("call: %v", err)
			}
		}()
	}
	wg.Wait()

	if max := atomic.LoadInt32(&fe.maxInFlight); max != 1 {
		t.Fatalf("expected at most 1 in-flight command, observed %d", max)
	}
	if got := len(fe.receivedCommands()); got != 6 {
		t.Fatalf("expected 6 commands, got %d", got)
	}
}

func TestClientHonorsCallerDeadline(t *testing.T) {
	t.Parallel()

	fe := newFakeEngine(t)
	fe.neverRespond = true

	c := testClient(t, fe.addr(), 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Call(ctx, Skip())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("call did not honor caller deadline, took %v", elapsed)
	}
}
