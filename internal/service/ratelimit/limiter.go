package ratelimit

import (
	"sync"
	"time"
)

// Config sets the per-key token bucket.
type Config struct {
	Enabled      bool    `yaml:"enabled" default:"true"`
	Capacity     float64 `yaml:"capacity" default:"30"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
}

type bucket struct {
	tokens float64
	last   time.Time
}

// sweepEvery spaces out the idle-bucket sweeps done inside Allow.
const sweepEvery = time.Minute

// Limiter is a keyed token bucket limiter. Buckets idle long enough to be full
// again are dropped, since a fresh bucket behaves the same.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time
	lastSweep  time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		m:          make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillPerSec,
		now:        time.Now,
	}
}

// NewFromConfig returns nil when limiting is disabled.
func NewFromConfig(cfg Config) *Limiter {
	if !cfg.Enabled {
		return nil
	}
	return New(cfg.Capacity, cfg.RefillPerSec)
}

// SetClock overrides the refill clock.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// Allow reports whether one token can be consumed for key.
// A nil limiter allows everything.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*l.refillRate, l.capacity)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Len reports how many keys currently hold a bucket.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) sweepLocked(now time.Time) {
	if l.refillRate <= 0 {
		return
	}
	if l.lastSweep.IsZero() {
		l.lastSweep = now
		return
	}
	if now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	full := time.Duration(l.capacity / l.refillRate * float64(time.Second))
	for k, b := range l.m {
		if now.Sub(b.last) >= full {
			delete(l.m, k)
		}
	}
}
