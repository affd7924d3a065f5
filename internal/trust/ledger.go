// Package trust holds the region trust ledger: which principals a region's
// owner has granted access to. Ownership itself lives in the external
// ownership source and is consulted at mutation time, never stored here.
package trust

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RegionKey identifies a coarse spatial authorization unit by its 2D region
// coordinates.
type RegionKey struct {
	X, Z int32
}

func (k RegionKey) String() string { return fmt.Sprintf("%d,%d", k.X, k.Z) }

// Ownership reports the current owner of a region. The second return is
// false for unowned regions.
type Ownership interface {
	OwnerOf(region RegionKey) (uuid.UUID, bool)
}

// Ledger is process-wide shared state: mutations are serialized, reads run
// concurrently.
type Ledger struct {
	owners Ownership

	mu      sync.RWMutex
	trusted map[RegionKey]map[uuid.UUID]struct{}
}

func NewLedger(owners Ownership) *Ledger {
	return &Ledger{
		owners:  owners,
		trusted: make(map[RegionKey]map[uuid.UUID]struct{}),
	}
}

// Grant adds trustee to the region's trusted set. It succeeds only when
// ownerCandidate is the region's current owner; not-owner is a normal
// negative result, not an error.
func (l *Ledger) Grant(ownerCandidate uuid.UUID, region RegionKey, trustee uuid.UUID) bool {
	if !l.isOwner(ownerCandidate, region) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.trusted[region]
	if set == nil {
		set = make(map[uuid.UUID]struct{})
		l.trusted[region] = set
	}
	set[trustee] = struct{}{}
	return true
}

// Revoke removes trustee from the region's trusted set. Removing a
// non-member is a no-op success: the return value means "caller was
// authorized", not "trustee existed".
func (l *Ledger) Revoke(ownerCandidate uuid.UUID, region RegionKey, trustee uuid.UUID) bool {
	if !l.isOwner(ownerCandidate, region) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if set := l.trusted[region]; set != nil {
		delete(set, trustee)
		if len(set) == 0 {
			delete(l.trusted, region)
		}
	}
	return true
}

// IsTrusted is an unrestricted read; unknown regions and principals are
// simply untrusted.
func (l *Ledger) IsTrusted(region RegionKey, principal uuid.UUID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.trusted[region][principal]
	return ok
}

// Trusted returns a copy of the region's trusted set.
func (l *Ledger) Trusted(region RegionKey) []uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	set := l.trusted[region]
	out := make([]uuid.UUID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

func (l *Ledger) isOwner(candidate uuid.UUID, region RegionKey) bool {
	if l.owners == nil {
		return false
	}
	owner, ok := l.owners.OwnerOf(region)
	return ok && owner == candidate
}
