// Package ratelimit defines token-bucket rules and an in-process limiter.
package ratelimit

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"
)

// Rule is a named token bucket: Burst tokens refilled at Burst per Period.
type Rule struct {
	Name   string
	Burst  int
	Period time.Duration
}

// PerSecond returns the refill rate in tokens per second.
func (r Rule) PerSecond() float64 {
	if r.Period <= 0 {
		return 0
	}
	return float64(r.Burst) / r.Period.Seconds()
}

// Default rules.
var (
	General = Rule{Name: "general", Burst: 100, Period: time.Minute}
	QR      = Rule{Name: "qr", Burst: 10, Period: time.Minute}
	Bulk    = Rule{Name: "bulk", Burst: 2, Period: 5 * time.Minute}
)

// Result is the outcome of a limiter check.
type Result struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter takes one token from the bucket of key under rule.
type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (*Result, error)
}

// HashKey returns a short blake2b digest of key so raw client addresses are
// never stored.
func HashKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is a per-process Limiter backed by golang.org/x/time/rate.
type Local struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewLocal creates an empty in-process limiter.
func NewLocal() *Local {
	return &Local{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (l *Local) Allow(_ context.Context, rule Rule, key string) (*Result, error) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	id := rule.Name + ":" + HashKey(key)
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rule.PerSecond()), rule.Burst)}
		l.buckets[id] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &Result{Allowed: false, ResetAt: now.Add(rule.Period), RetryAfter: rule.Period}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &Result{
			Allowed:    false,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}, nil
	}

	return &Result{
		Allowed:   true,
		Remaining: int64(b.limiter.TokensAt(now)),
		ResetAt:   now.Add(time.Duration(float64(time.Second) / max(rule.PerSecond(), 1e-9))),
	}, nil
}

// sweep drops buckets idle for longer than idleTTL. Caller holds l.mu.
func (l *Local) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, id)
		}
	}
}
