package ratelimit

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config defines the sliding window and the memory bound.
type Config struct {
	Max    int           // Maximum votes allowed in the window
	Window time.Duration // Trailing window length
	MaxIPs int           // Tracked IPs before eviction kicks in
}

// Limiter is an in-memory sliding-window limiter keyed by client IP.
// State is per process and is lost on restart.
type Limiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	config  Config
	entries map[string][]time.Time // oldest first
}

// New creates a limiter with the given config.
func New(cfg Config, clock clockwork.Clock) *Limiter {
	return &Limiter{
		clock:   clock,
		config:  cfg,
		entries: make(map[string][]time.Time),
	}
}

// Admit records a vote attempt from ip if it is within the limit.
// When the limit is reached it returns false and the whole seconds until
// the oldest vote in the window expires (at least 1).
func (l *Limiter) Admit(ip string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if len(l.entries) > l.config.MaxIPs {
		l.evict()
	}

	cutoff := now.Add(-l.config.Window)
	stamps := l.entries[ip]
	keep := 0
	for keep < len(stamps) && !stamps[keep].After(cutoff) {
		keep++
	}
	stamps = stamps[keep:]

	if len(stamps) >= l.config.Max {
		l.entries[ip] = stamps
		wait := l.config.Window - now.Sub(stamps[0])
		retry := int(math.Ceil(wait.Seconds()))
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}

	l.entries[ip] = append(stamps, now)
	return true, 0
}

// Len returns the number of tracked IPs.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// evict drops roughly a quarter of the tracked IPs, least recently active
// first. Caller holds l.mu.
func (l *Limiter) evict() {
	type lastSeen struct {
		ip   string
		last time.Time
	}

	all := make([]lastSeen, 0, len(l.entries))
	for ip, stamps := range l.entries {
		var last time.Time
		if len(stamps) > 0 {
			last = stamps[len(stamps)-1]
		}
		all = append(all, lastSeen{ip, last})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].last.Before(all[j].last) })

	n := len(all) / 4
	if n < 1 {
		n = 1
	}
	for _, e := range all[:n] {
		delete(l.entries, e.ip)
	}
}
