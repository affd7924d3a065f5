package session

import (
	"sync"
	"time"
)

// DefaultPushInterval is the snapshot debounce window.
const DefaultPushInterval = 2 * time.Second

// Pusher is the debounce gate for snapshot pushes: at most one push per
// interval, intervening triggers are dropped, not buffered.
type Pusher struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewPusher(interval time.Duration) *Pusher {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	return &Pusher{interval: interval}
}

// Trigger reports whether a push may happen at now and, if so, opens the
// next window.
func (p *Pusher) Trigger(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	return true
}
