// Package waypoints holds the server-authoritative waypoint set and
// produces the per-recipient visible subset handed to the snapshot codec.
package waypoints

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"outlands.gg/internal/protocol"
)

// Store keys waypoints by name; names are unique within the store, so the
// uniqueness invariant of an encoded snapshot holds by construction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]protocol.WaypointEntry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]protocol.WaypointEntry)}
}

// Put inserts or replaces a waypoint. SharedWith is dropped unless the
// visibility tag permits sharing.
func (s *Store) Put(e protocol.WaypointEntry) {
	if e.Name == "" {
		return
	}
	if e.Visibility != protocol.VisibilityShared {
		e.SharedWith = nil
	}
	s.mu.Lock()
	s.entries[e.Name] = e
	s.mu.Unlock()
}

func (s *Store) Delete(name string) {
	s.mu.Lock()
	delete(s.entries, name)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// VisibleTo returns the waypoints recipient is entitled to see, in stable
// name order. PRIVATE entries are owner-only; SHARED adds the shared set;
// PUBLIC and GLOBAL are visible to everyone.
func (s *Store) VisibleTo(recipient uuid.UUID) []protocol.WaypointEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.WaypointEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if visibleTo(e, recipient) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func visibleTo(e protocol.WaypointEntry, recipient uuid.UUID) bool {
	switch e.Visibility {
	case protocol.VisibilityPublic, protocol.VisibilityGlobal:
		return true
	case protocol.VisibilityShared:
		if e.Owner == recipient {
			return true
		}
		for _, p := range e.SharedWith {
			if p == recipient {
				return true
			}
		}
		return false
	default:
		// PRIVATE and unknown tags stay owner-only.
		return e.Owner == recipient
	}
}
