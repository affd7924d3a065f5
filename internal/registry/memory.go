// Package registry holds in-memory implementations of the external
// collaborator contracts: the ownership source, the balance ledger, the
// wanted and bounty registries, and the clan registry. The policy and trust
// layers only see the narrow interfaces; these concrete stores back the
// server binary and tests.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"outlands.gg/internal/trust"
)

// Ownership maps regions to an owner and a set of named permission flags.
type Ownership struct {
	mu     sync.RWMutex
	owners map[trust.RegionKey]uuid.UUID
	flags  map[trust.RegionKey]map[string]bool
}

func NewOwnership() *Ownership {
	return &Ownership{
		owners: make(map[trust.RegionKey]uuid.UUID),
		flags:  make(map[trust.RegionKey]map[string]bool),
	}
}

func (o *Ownership) SetOwner(region trust.RegionKey, owner uuid.UUID) {
	o.mu.Lock()
	o.owners[region] = owner
	o.mu.Unlock()
}

func (o *Ownership) SetFlag(region trust.RegionKey, perm string, value bool) {
	o.mu.Lock()
	if o.flags[region] == nil {
		o.flags[region] = make(map[string]bool)
	}
	o.flags[region][perm] = value
	o.mu.Unlock()
}

func (o *Ownership) OwnerOf(region trust.RegionKey) (uuid.UUID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	owner, ok := o.owners[region]
	return owner, ok
}

// PermissionFlag reports (value, present). Absent flags are unset.
func (o *Ownership) PermissionFlag(region trust.RegionKey, perm string) (bool, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.flags[region][perm]
	return v, ok
}

// Balances is a minimal in-memory economy ledger. Debits may drive a
// balance negative; the economy layer settles that elsewhere.
type Balances struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
}

func NewBalances() *Balances {
	return &Balances{balances: make(map[uuid.UUID]int64)}
}

func (b *Balances) Credit(principal uuid.UUID, amount int64) {
	b.mu.Lock()
	b.balances[principal] += amount
	b.mu.Unlock()
}

func (b *Balances) Debit(principal uuid.UUID, amount int64, reason, note string) error {
	if amount <= 0 {
		return fmt.Errorf("debit of %d (%s)", amount, reason)
	}
	b.mu.Lock()
	b.balances[principal] -= amount
	b.mu.Unlock()
	return nil
}

func (b *Balances) Balance(principal uuid.UUID) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[principal]
}

// WantedList tracks wanted magnitudes per principal.
type WantedList struct {
	mu        sync.RWMutex
	magnitude map[uuid.UUID]int
}

func NewWantedList() *WantedList {
	return &WantedList{magnitude: make(map[uuid.UUID]int)}
}

func (w *WantedList) IsWanted(principal uuid.UUID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.magnitude[principal] > 0
}

func (w *WantedList) AddWanted(principal uuid.UUID, reason string, magnitude int) error {
	if magnitude <= 0 {
		return fmt.Errorf("wanted magnitude %d (%s)", magnitude, reason)
	}
	w.mu.Lock()
	w.magnitude[principal] += magnitude
	w.mu.Unlock()
	return nil
}

func (w *WantedList) Magnitude(principal uuid.UUID) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.magnitude[principal]
}

// BountyBoard accumulates bounties per target and pays the pot out to the
// killer through the balance ledger on claim.
type BountyBoard struct {
	ledger *Balances

	mu   sync.Mutex
	pots map[uuid.UUID]int64
}

func NewBountyBoard(ledger *Balances) *BountyBoard {
	return &BountyBoard{ledger: ledger, pots: make(map[uuid.UUID]int64)}
}

func (b *BountyBoard) PlaceSystemBounty(target uuid.UUID, amount int64, note string) error {
	if amount <= 0 {
		return fmt.Errorf("bounty of %d", amount)
	}
	b.mu.Lock()
	b.pots[target] += amount
	b.mu.Unlock()
	return nil
}

// Claim settles any pot on victim to killer. Claiming with no pot is a
// normal no-op.
func (b *BountyBoard) Claim(victim, killer uuid.UUID) error {
	b.mu.Lock()
	pot := b.pots[victim]
	delete(b.pots, victim)
	b.mu.Unlock()
	if pot > 0 && killer != uuid.Nil && b.ledger != nil {
		b.ledger.Credit(killer, pot)
	}
	return nil
}

func (b *BountyBoard) Pot(target uuid.UUID) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pots[target]
}

// Clans is the group-membership registry.
type Clans struct {
	mu    sync.RWMutex
	clans map[uuid.UUID]string
}

func NewClans() *Clans {
	return &Clans{clans: make(map[uuid.UUID]string)}
}

func (c *Clans) Join(principal uuid.UUID, clan string) {
	c.mu.Lock()
	if clan == "" {
		delete(c.clans, principal)
	} else {
		c.clans[principal] = clan
	}
	c.mu.Unlock()
}

func (c *Clans) ClanOf(principal uuid.UUID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clan, ok := c.clans[principal]
	return clan, ok
}
