package scan

import (
	"sync"
	"time"
)

// DefaultCooldown is the per-requester admission window.
const DefaultCooldown = 5 * time.Second

// CooldownGate bounds per-requester scan rate, independent of the global
// queue. The timestamp updates only on admission, so spamming during the
// window cannot reset it.
type CooldownGate struct {
	mu     sync.Mutex
	window time.Duration
	last   map[int64]time.Time
}

func NewCooldownGate(window time.Duration) *CooldownGate {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &CooldownGate{window: window, last: map[int64]time.Time{}}
}

// Admit reports whether the requester may start a scan now, recording the
// admission time when it does.
func (g *CooldownGate) Admit(requesterID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[requesterID]; ok && now.Sub(last) <= g.window {
		return false
	}
	g.last[requesterID] = now
	return true
}

// Prune drops entries older than maxAge and returns how many were removed.
// Called periodically by the maintenance service.
func (g *CooldownGate) Prune(maxAge time.Duration, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, last := range g.last {
		if now.Sub(last) > maxAge {
			delete(g.last, id)
			removed++
		}
	}
	return removed
}
