// Package ratelimit implements the per-address quota applied to anonymous
// searches: a fixed number of queries per fixed window, counted from the
// first query of the window.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 24 * time.Hour
)

// Decision is the gate's answer for one query.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
}

// Checker is the boundary the search service consumes.
type Checker interface {
	Check(address string) Decision
}

type tracked struct {
	count       int
	windowStart time.Time
}

// Gate counts queries per caller address. It is safe for concurrent use; the
// counters are the only state and are updated under one short lock.
type Gate struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu    sync.Mutex
	addrs map[string]*tracked
}

// New returns a gate allowing limit queries per window. Non-positive values
// fall back to the defaults; a nil clock means time.Now.
func New(limit int, window time.Duration, clock func() time.Time) *Gate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		limit:  limit,
		window: window,
		clock:  clock,
		addrs:  make(map[string]*tracked),
	}
}

// Check records a query from address and reports whether it may proceed
// and how many queries remain in the current window.
func (g *Gate) Check(address string) Decision {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	t, seen := g.addrs[address]
	if !seen || now.Sub(t.windowStart) >= g.window {
		g.addrs[address] = &tracked{count: 1, windowStart: now}
		return Decision{Allowed: true, Remaining: g.limit - 1, Limit: g.limit}
	}

	// Stop counting once over the limit; denied callers keep hammering.
	if t.count <= g.limit {
		t.count++
	}
	return Decision{
		Allowed:   t.count <= g.limit,
		Remaining: max(0, g.limit-t.count),
		Limit:     g.limit,
	}
}

// Prune forgets addresses whose window has elapsed and returns how many were
// dropped.
func (g *Gate) Prune() int {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for addr, t := range g.addrs {
		if now.Sub(t.windowStart) >= g.window {
			delete(g.addrs, addr)
			n++
		}
	}
	return n
}

// Limit returns the number of queries allowed per window.
func (g *Gate) Limit() int { return g.limit }

// Window returns the window length.
func (g *Gate) Window() time.Duration { return g.window }

// Tracked returns the number of addresses with live counters.
func (g *Gate) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.addrs)
}
