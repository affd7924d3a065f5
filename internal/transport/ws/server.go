// Package ws is the websocket transport: one connection per player, a
// login-phase version handshake before any gameplay traffic, then binary
// frames both ways. Websocket messages are already length-framed, which is
// all the wire codec requires.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"outlands.gg/internal/protocol"
	"outlands.gg/internal/session"
	"outlands.gg/internal/waypoints"
)

// HandshakeRecorder indexes handshake outcomes. Nil disables recording.
type HandshakeRecorder interface {
	RecordHandshake(remote string, version int, accepted bool, reason string)
}

type Server struct {
	logger       *log.Logger
	store        *waypoints.Store
	recorder     HandshakeRecorder
	pushInterval time.Duration

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session.Session]struct{}
}

func NewServer(logger *log.Logger, store *waypoints.Store, recorder HandshakeRecorder, pushInterval time.Duration) *Server {
	return &Server{
		logger:       logger,
		store:        store,
		recorder:     recorder,
		pushInterval: pushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: make(map[*session.Session]struct{}),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		recipient := playerID(r)

		out := make(chan []byte, 32)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		if !s.handshake(conn, r.RemoteAddr) {
			return
		}

		// Session state exists only after ACCEPTED; the play-phase receiver
		// below is installed no earlier.
		send := func(b []byte) error {
			select {
			case out <- b:
			default:
				// Slow consumer: drop the frame, the next push resends a
				// full snapshot anyway.
			}
			return nil
		}
		sess := session.New(s.logger, s.store, recipient, s.pushInterval, send)
		s.register(sess)
		defer s.unregister(sess)

		// Immediate first snapshot, then the tick driver takes over.
		sess.TryPush(time.Now())

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			id, payload, err := protocol.ParseFrame(msg)
			if err != nil {
				continue
			}
			sess.HandleFrame(time.Now(), id, payload)
		}
	}
}

// handshake runs the login-phase exchange: send the query, wait for exactly
// one response, accept or close with a user-visible reason.
func (s *Server) handshake(conn *websocket.Conn, remote string) bool {
	n := session.NewNegotiator(s.logger, protocol.Version)

	query := protocol.Frame(protocol.MsgHandshakeQuery, n.Query())
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.BinaryMessage, query); err != nil {
		return false
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()

	var d session.Decision
	switch {
	case err != nil:
		d = n.OnMissing()
	default:
		id, payload, perr := protocol.ParseFrame(msg)
		if perr != nil || id != protocol.MsgHandshakeResponse {
			d = n.OnMissing()
		} else {
			d = n.OnResponse(payload)
		}
	}

	if s.recorder != nil {
		s.recorder.RecordHandshake(remote, d.ClientVersion, d.Accepted, d.Reason)
	}
	if !d.Accepted {
		s.logger.Printf("handshake rejected %s: %s", remote, d.Reason)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, d.Reason),
			time.Now().Add(time.Second))
		return false
	}
	return true
}

func (s *Server) register(sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(sess *session.Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// TickAll drives the debounced snapshot push for every live session. Wired
// to the world tick on the event bus.
func (s *Server) TickAll(now time.Time) {
	s.mu.Lock()
	live := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		sess.OnTick(now)
	}
}

// SessionCount reports live accepted sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// playerID reads the player identity the host's login layer attaches to the
// request. A missing or malformed id gets a fresh one; real deployments put
// an auth layer in front.
func playerID(r *http.Request) uuid.UUID {
	if p, err := uuid.Parse(r.URL.Query().Get("player")); err == nil {
		return p
	}
	return uuid.New()
}
