package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricedb-harness/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type frame struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// newServer upgrades each request and hands the connection to handle.
func newServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// pongServer answers every ping with a pong carrying the same timestamp.
func pongServer(t *testing.T) *httptest.Server {
	return newServer(t, func(conn *websocket.Conn) {
		for {
			var msg frame
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Event == "ping" {
				conn.WriteJSON(frame{Event: "pong", Timestamp: msg.Timestamp})
			}
		}
	})
}

func testHarness(url string) *Harness {
	h := NewHarness(url)
	h.ConnectTimeout = 2 * time.Second
	h.HeartbeatTimeout = 2 * time.Second
	return h
}

func TestConnectAndClose(t *testing.T) {
	srv := pongServer(t)
	h := testHarness(wsURL(srv))

	s, err := h.Connect(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, types.StateConnected, s.State())

	require.NoError(t, s.Close())
	assert.Equal(t, types.StateDisconnected, s.State())

	// Close is idempotent.
	assert.NoError(t, s.Close())
	assert.Equal(t, types.StateDisconnected, s.State())
}

func TestConnectRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	h := testHarness(wsURL(srv))
	s, err := h.Connect(context.Background())
	require.Error(t, err)
	require.NotNil(t, s)
	assert.Equal(t, types.StateFailed, s.State())
	assert.NoError(t, s.Close())
}

func TestMeasureRoundTrip(t *testing.T) {
	srv := pongServer(t)
	h := testHarness(wsURL(srv))

	s, err := h.Connect(context.Background())
	require.NoError(t, err)
	defer s.Close()

	latency, ok, err := s.MeasureRoundTrip(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, latency, time.Duration(0))

	sent, received := s.Counters()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, received)
	assert.Len(t, s.Latencies(), 1)
}

func TestMeasureRoundTripSkipsBroadcastFrames(t *testing.T) {
	srv := newServer(t, func(conn *websocket.Conn) {
		var msg frame
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		// A price broadcast lands before the pong; the client must skip it.
		conn.WriteJSON(map[string]any{"event": "price-update", "sku": "5021;6"})
		conn.WriteJSON(frame{Event: "pong", Timestamp: msg.Timestamp})
		conn.ReadMessage() // hold until the client disconnects
	})
	h := testHarness(wsURL(srv))

	s, err := h.Connect(context.Background())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.MeasureRoundTrip(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	_, received := s.Counters()
	assert.Equal(t, 2, received)
}

func TestMeasureRoundTripNoReply(t *testing.T) {
	srv := newServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // swallow the ping, never answer
		conn.ReadMessage() // hold until the client disconnects
	})
	h := testHarness(wsURL(srv))
	h.HeartbeatTimeout = 200 * time.Millisecond

	s, err := h.Connect(context.Background())
	require.NoError(t, err)
	defer s.Close()

	latency, ok, err := s.MeasureRoundTrip(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, latency)
	assert.Empty(t, s.Latencies())
}

func TestMeasureRoundTripNotConnected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	h := testHarness(wsURL(srv))
	s, _ := h.Connect(context.Background())
	_, _, err := s.MeasureRoundTrip(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestHoldOpenStaysConnected(t *testing.T) {
	srv := newServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"event": "price-update", "sku": "40;11;kt-3"})
		conn.ReadMessage() // hold until the client disconnects
	})
	h := testHarness(wsURL(srv))

	s, err := h.Connect(context.Background())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.HoldOpen(300*time.Millisecond))
	assert.Equal(t, types.StateConnected, s.State())

	_, received := s.Counters()
	assert.Equal(t, 1, received)
}

func TestHoldOpenDetectsServerClose(t *testing.T) {
	srv := newServer(t, func(conn *websocket.Conn) {
		time.Sleep(50 * time.Millisecond)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
	})
	h := testHarness(wsURL(srv))

	s, err := h.Connect(context.Background())
	require.NoError(t, err)
	defer s.Close()

	err = s.HoldOpen(2 * time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed during hold window")
	assert.Equal(t, types.StateFailed, s.State())
}

func TestFanOut(t *testing.T) {
	srv := pongServer(t)
	h := testHarness(wsURL(srv))

	states, err := h.FanOut(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, states, 3)
	for _, st := range states {
		assert.Equal(t, types.StateConnected, st)
	}
}

func TestFanOutPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	h := testHarness(wsURL(srv))
	states, err := h.FanOut(context.Background(), 3)
	require.Error(t, err)
	require.Len(t, states, 3)
	for _, st := range states {
		assert.Equal(t, types.StateFailed, st)
	}
}
