// Package events is the in-process bus joining the host's callback-driven
// subsystems: death notifications fan out to policy handlers, world ticks
// drive the snapshot push. Handlers run synchronously to completion, each
// behind the fault isolation wrapper, so one failing subscriber cannot stop
// the others.
package events

import (
	"log"
	"sync"

	"outlands.gg/internal/guard"
	"outlands.gg/internal/policy"
)

type Bus struct {
	logger *log.Logger

	mu     sync.RWMutex
	deaths []namedDeathHandler
	ticks  []namedTickHandler
}

type namedDeathHandler struct {
	name string
	fn   func(policy.DeathEvent)
}

type namedTickHandler struct {
	name string
	fn   func(tick uint64)
}

func NewBus(logger *log.Logger) *Bus {
	return &Bus{logger: logger}
}

func (b *Bus) OnDeath(name string, fn func(policy.DeathEvent)) {
	b.mu.Lock()
	b.deaths = append(b.deaths, namedDeathHandler{name: name, fn: fn})
	b.mu.Unlock()
}

func (b *Bus) OnTick(name string, fn func(tick uint64)) {
	b.mu.Lock()
	b.ticks = append(b.ticks, namedTickHandler{name: name, fn: fn})
	b.mu.Unlock()
}

// PublishDeath dispatches ev to every death subscriber in registration
// order.
func (b *Bus) PublishDeath(ev policy.DeathEvent) {
	b.mu.RLock()
	handlers := b.deaths
	b.mu.RUnlock()
	for _, h := range handlers {
		h := h
		guard.Run(b.logger, h.name, func() error {
			h.fn(ev)
			return nil
		})
	}
}

// PublishTick dispatches a world tick to every tick subscriber.
func (b *Bus) PublishTick(tick uint64) {
	b.mu.RLock()
	handlers := b.ticks
	b.mu.RUnlock()
	for _, h := range handlers {
		h := h
		guard.Run(b.logger, h.name, func() error {
			h.fn(tick)
			return nil
		})
	}
}
