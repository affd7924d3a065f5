package ws

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"outlands.gg/internal/protocol"
	"outlands.gg/internal/waypoints"
)

type recordedHandshake struct {
	version  int
	accepted bool
	reason   string
}

type fakeRecorder struct {
	ch chan recordedHandshake
}

func (f *fakeRecorder) RecordHandshake(_ string, version int, accepted bool, reason string) {
	f.ch <- recordedHandshake{version: version, accepted: accepted, reason: reason}
}

func startServer(t *testing.T, store *waypoints.Store, rec HandshakeRecorder) string {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	srv := NewServer(logger, store, rec, 2*time.Second)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (byte, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	id, payload, err := protocol.ParseFrame(msg)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	return id, payload
}

func respondHandshake(t *testing.T, conn *websocket.Conn, version int) {
	t.Helper()
	id, payload := readFrame(t, conn)
	if id != protocol.MsgHandshakeQuery {
		t.Fatalf("expected handshake query, got 0x%02x", id)
	}
	serverVersion, err := protocol.DecodeVersion(payload)
	if err != nil {
		t.Fatalf("decode query: %v", err)
	}
	if serverVersion != protocol.Version {
		t.Fatalf("query carried version %d", serverVersion)
	}
	resp := protocol.Frame(protocol.MsgHandshakeResponse, protocol.EncodeVersion(version))
	if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
		t.Fatalf("write response: %v", err)
	}
}

func TestHandshakeAccepted_SnapshotFollows(t *testing.T) {
	store := waypoints.NewStore()
	player := uuid.MustParse("00000000-0000-4000-8000-000000000077")
	store.Put(protocol.WaypointEntry{
		Name:       "spawn",
		Visibility: protocol.VisibilityPublic,
		Owner:      player,
	})
	rec := &fakeRecorder{ch: make(chan recordedHandshake, 1)}
	url := startServer(t, store, rec)

	conn := dial(t, url+"?player="+player.String())
	respondHandshake(t, conn, protocol.Version)

	id, payload := readFrame(t, conn)
	if id != protocol.MsgWaypointSnapshot {
		t.Fatalf("expected waypoint snapshot, got 0x%02x", id)
	}
	entries, err := protocol.DecodeWaypointSnapshot(payload)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "spawn" {
		t.Fatalf("unexpected snapshot %+v", entries)
	}

	got := <-rec.ch
	if !got.accepted || got.version != protocol.Version {
		t.Fatalf("expected recorded acceptance, got %+v", got)
	}
}

func TestHandshakeMismatch_ClosedWithBothVersions(t *testing.T) {
	rec := &fakeRecorder{ch: make(chan recordedHandshake, 1)}
	url := startServer(t, waypoints.NewStore(), rec)

	conn := dial(t, url)
	respondHandshake(t, conn, protocol.Version+1)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy violation close, got %d", ce.Code)
	}
	if !strings.Contains(ce.Text, "mismatch") {
		t.Fatalf("close reason %q should name the mismatch", ce.Text)
	}

	got := <-rec.ch
	if got.accepted || got.version != protocol.Version+1 {
		t.Fatalf("expected recorded rejection of version %d, got %+v", protocol.Version+1, got)
	}
	if !strings.Contains(got.reason, "mismatch") {
		t.Fatalf("recorded reason %q", got.reason)
	}
}

func TestHandshakeGarbage_RejectedAsUnreadable(t *testing.T) {
	rec := &fakeRecorder{ch: make(chan recordedHandshake, 1)}
	url := startServer(t, waypoints.NewStore(), rec)

	conn := dial(t, url)
	id, _ := readFrame(t, conn)
	if id != protocol.MsgHandshakeQuery {
		t.Fatalf("expected query, got 0x%02x", id)
	}
	garbage := protocol.Frame(protocol.MsgHandshakeResponse, []byte{0x80})
	if err := conn.WriteMessage(websocket.BinaryMessage, garbage); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := <-rec.ch
	if got.accepted || got.version != protocol.VersionUnreadable {
		t.Fatalf("expected -1 rejection, got %+v", got)
	}
}

func TestHandshakeWrongFirstMessage_RejectedAsMissing(t *testing.T) {
	rec := &fakeRecorder{ch: make(chan recordedHandshake, 1)}
	url := startServer(t, waypoints.NewStore(), rec)

	conn := dial(t, url)
	readFrame(t, conn)
	// A client without the extension talks something else entirely.
	other := protocol.Frame(protocol.MsgOpenMapView, nil)
	if err := conn.WriteMessage(websocket.BinaryMessage, other); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := <-rec.ch
	if got.accepted {
		t.Fatalf("expected rejection, got %+v", got)
	}
	if !strings.Contains(got.reason, "missing") {
		t.Fatalf("expected missing-extension reason, got %q", got.reason)
	}
}

func TestOpenMapView_DebouncedAfterInitialPush(t *testing.T) {
	store := waypoints.NewStore()
	player := uuid.MustParse("00000000-0000-4000-8000-000000000078")
	store.Put(protocol.WaypointEntry{Name: "a", Visibility: protocol.VisibilityPublic, Owner: player})
	url := startServer(t, store, nil)

	conn := dial(t, url+"?player="+player.String())
	respondHandshake(t, conn, protocol.Version)

	// Initial push arrives.
	id, _ := readFrame(t, conn)
	if id != protocol.MsgWaypointSnapshot {
		t.Fatalf("expected snapshot, got 0x%02x", id)
	}

	// An immediate open-map-view trigger falls inside the 2s window: no
	// second snapshot.
	open := protocol.Frame(protocol.MsgOpenMapView, nil)
	if err := conn.WriteMessage(websocket.BinaryMessage, open); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no snapshot inside the debounce window")
	}
}
