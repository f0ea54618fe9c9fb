package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
)

type Config struct {
	Ceiling int
	Window  time.Duration
}

// Decision describes the outcome of one admission attempt.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter is a fixed-window counter keyed by client. Each key's
// increment-and-check runs under its shard mutex.
type Limiter struct {
	cfg    Config
	clock  clock.Clock
	shards []*shard
}

func New(cfg Config, clk clock.Clock) *Limiter {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = constants.DefaultRateLimitCeiling
	}
	if cfg.Window <= 0 {
		cfg.Window = constants.DefaultRateLimitWindow
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	shards := make([]*shard, constants.RateLimitShards)
	for i := range shards {
		shards[i] = &shard{buckets: make(map[string]*bucket)}
	}

	return &Limiter{
		cfg:    cfg,
		clock:  clk,
		shards: shards,
	}
}

func (l *Limiter) Config() Config {
	return l.cfg
}

func (l *Limiter) Admit(key string) Decision {
	s := l.shardFor(key)
	now := l.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(l.cfg.Window)) {
		b = &bucket{windowStart: now}
		s.buckets[key] = b
	}

	resetAt := b.windowStart.Add(l.cfg.Window)

	if b.count >= l.cfg.Ceiling {
		return Decision{
			Allowed:    false,
			Limit:      l.cfg.Ceiling,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	b.count++

	return Decision{
		Allowed:   true,
		Limit:     l.cfg.Ceiling,
		Remaining: l.cfg.Ceiling - b.count,
		ResetAt:   resetAt,
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}

// Sweep drops buckets whose window has elapsed and returns how many it removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			if !now.Before(b.windowStart.Add(l.cfg.Window)) {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, onSweep func(removed, live int)) {
	if interval <= 0 {
		interval = constants.RateLimitCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.Sweep()
			if onSweep != nil {
				onSweep(removed, l.Len())
			}
		}
	}
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}
