package session

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"outlands.gg/internal/guard"
	"outlands.gg/internal/protocol"
	"outlands.gg/internal/waypoints"
)

// Session is the play-phase state for one accepted connection: who the
// recipient is, where outbound frames go, and the debounced waypoint push.
// It must only be constructed after the handshake reached ACCEPTED.
type Session struct {
	logger    *log.Logger
	store     *waypoints.Store
	recipient uuid.UUID
	pusher    *Pusher
	send      func([]byte) error
}

func New(logger *log.Logger, store *waypoints.Store, recipient uuid.UUID, interval time.Duration, send func([]byte) error) *Session {
	return &Session{
		logger:    logger,
		store:     store,
		recipient: recipient,
		pusher:    NewPusher(interval),
		send:      send,
	}
}

func (s *Session) Recipient() uuid.UUID { return s.recipient }

// HandleFrame routes one play-phase client frame. Unknown ids are ignored;
// the host transport already filtered the login-phase ids.
func (s *Session) HandleFrame(now time.Time, id byte, payload []byte) {
	switch id {
	case protocol.MsgOpenMapView:
		// Presence-only trigger; payload is empty by contract and ignored
		// either way.
		s.TryPush(now)
	}
}

// OnTick is the periodic push driver.
func (s *Session) OnTick(now time.Time) {
	s.TryPush(now)
}

// TryPush pushes the recipient's visible waypoint subset if the debounce
// window allows it. The snapshot is filtered, encoded and sent in one shot;
// nothing is retained across calls.
func (s *Session) TryPush(now time.Time) bool {
	if !s.pusher.Trigger(now) {
		return false
	}
	guard.Run(s.logger, "session.push_snapshot", func() error {
		visible := s.store.VisibleTo(s.recipient)
		payload, err := protocol.EncodeWaypointSnapshot(visible)
		if err != nil {
			return fmt.Errorf("encode snapshot for %s: %w", s.recipient, err)
		}
		if err := s.send(protocol.Frame(protocol.MsgWaypointSnapshot, payload)); err != nil {
			return fmt.Errorf("send snapshot to %s: %w", s.recipient, err)
		}
		return nil
	})
	return true
}
