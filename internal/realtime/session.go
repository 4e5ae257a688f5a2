// Package realtime manages sessions against the realtime transport. Each
// session is owned by exactly one caller and moves through an explicit state
// machine: Connecting -> Connected -> {Disconnected, Failed}. Every opened
// session must be closed on all exit paths, whatever the test outcome.
package realtime

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"pricedb-harness/internal/types"
)

// Harness opens and drives realtime sessions.
type Harness struct {
	URL              string
	ConnectTimeout   time.Duration // Connecting -> Connected bound
	HeartbeatTimeout time.Duration // round-trip reply bound
}

// NewHarness creates a harness with the default bounds (10s connect, 5s
// heartbeat).
func NewHarness(url string) *Harness {
	return &Harness{
		URL:              url,
		ConnectTimeout:   10 * time.Second,
		HeartbeatTimeout: 5 * time.Second,
	}
}

// Session is one realtime connection with its lifecycle state, latency
// samples and message counters.
type Session struct {
	ID string

	harness *Harness
	conn    *websocket.Conn

	mu        sync.Mutex
	state     types.SessionState
	latencies []time.Duration
	sent      int
	received  int
}

// heartbeat is the application-level ping frame.
type heartbeat struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// Connect opens a new session. On transport-level acknowledgment within the
// connect bound the session is Connected; on timeout or refusal it is Failed
// and an error is returned alongside the session so callers can still
// inspect and close it.
func (h *Harness) Connect(ctx context.Context) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		harness: h,
		state:   types.StateConnecting,
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: h.ConnectTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, h.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.setState(types.StateFailed)
		return s, fmt.Errorf("connect to %s: %w", h.URL, err)
	}

	s.conn = conn
	s.setState(types.StateConnected)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state types.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Latencies returns the recorded round-trip samples.
func (s *Session) Latencies() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.latencies))
	copy(out, s.latencies)
	return out
}

// Counters returns the sent and received message counts.
func (s *Session) Counters() (sent, received int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.received
}

// MeasureRoundTrip sends an application-level heartbeat and records latency
// if a reply arrives within the bound. No reply within the bound is not a
// failure, since heartbeat support is optional server behavior; the absence
// is still recorded via the returned ok flag. A transport error during the
// exchange fails the session.
func (s *Session) MeasureRoundTrip(ctx context.Context) (latency time.Duration, ok bool, err error) {
	if s.State() != types.StateConnected {
		return 0, false, fmt.Errorf("session %s not connected", s.ID)
	}

	start := time.Now()
	ping := heartbeat{Event: "ping", Timestamp: start.UnixMilli()}
	if err := s.conn.WriteJSON(ping); err != nil {
		s.setState(types.StateFailed)
		return 0, false, fmt.Errorf("write heartbeat: %w", err)
	}
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()

	deadline := start.Add(s.harness.HeartbeatTimeout)
	if d, hasDeadline := ctx.Deadline(); hasDeadline && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var reply heartbeat
		if err := s.conn.ReadJSON(&reply); err != nil {
			if netErr, isNet := err.(net.Error); isNet && netErr.Timeout() {
				return 0, false, nil // no pong inside the bound
			}
			s.setState(types.StateFailed)
			return 0, false, fmt.Errorf("read heartbeat reply: %w", err)
		}
		s.mu.Lock()
		s.received++
		s.mu.Unlock()
		if reply.Event != "pong" {
			continue // unrelated broadcast frame
		}
		latency = time.Since(start)
		s.mu.Lock()
		s.latencies = append(s.latencies, latency)
		s.mu.Unlock()
		return latency, true, nil
	}
}

// HoldOpen asserts the session stays Connected for the full duration,
// failing immediately on any unexpected close. Frames arriving during the
// window are counted and otherwise ignored.
func (s *Session) HoldOpen(d time.Duration) error {
	if s.State() != types.StateConnected {
		return fmt.Errorf("session %s not connected", s.ID)
	}

	deadline := time.Now().Add(d)
	s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if netErr, isNet := err.(net.Error); isNet && netErr.Timeout() {
				return nil // window elapsed, still connected
			}
			s.setState(types.StateFailed)
			return fmt.Errorf("session closed during hold window: %w", err)
		}
		s.mu.Lock()
		s.received++
		s.mu.Unlock()
	}
}

// Close tears the session down. A Connected session transitions to
// Disconnected via a graceful close frame; any other state is left as-is.
// Close is idempotent and safe on failed sessions that never dialed.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == types.StateConnected
	if connected {
		s.state = types.StateDisconnected
	}
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if connected {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	return conn.Close()
}

// FanOut opens n independent sessions concurrently and requires all n to
// reach Connected. Every session is closed before returning, whatever the
// outcome. The returned states are the per-session connect results.
func (h *Harness) FanOut(ctx context.Context, n int) ([]types.SessionState, error) {
	sessions := make([]*Session, n)
	states := make([]types.SessionState, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			s, err := h.Connect(gctx)
			sessions[i] = s
			states[i] = s.State()
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, s := range sessions {
		if s != nil {
			s.Close()
		}
	}

	return states, err
}
