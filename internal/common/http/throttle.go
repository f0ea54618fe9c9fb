package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CredentialThrottle is a per-IP token bucket for endpoints that accept
// passwords or refresh secrets.
type CredentialThrottle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	clientIP *ClientIPResolver
	now      func() time.Time
}

func NewCredentialThrottle(requestsPerSecond float64, burst int, clientIP *ClientIPResolver) *CredentialThrottle {
	if requestsPerSecond <= 0 {
		requestsPerSecond = constants.CredentialThrottleRequestsPerSecond
	}
	if burst <= 0 {
		burst = constants.CredentialThrottleBurst
	}
	return &CredentialThrottle{
		limiters: make(map[string]*throttleEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  constants.CredentialThrottleIdleTTL,
		clientIP: clientIP,
		now:      time.Now,
	}
}

func (t *CredentialThrottle) reserve(key string) *rate.Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.ReserveN(now, 1)
}

// Allow consumes one token for key. When none is available it returns the
// wait until the next one.
func (t *CredentialThrottle) Allow(key string) (bool, time.Duration) {
	res := t.reserve(key)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(t.now())
	if delay > 0 {
		res.CancelAt(t.now())
		return false, delay
	}
	return true, 0
}

func (t *CredentialThrottle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idleTTL)
	removed := 0
	for key, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(t.limiters, key)
			removed++
		}
	}
	return removed
}

func (t *CredentialThrottle) Run(ctx context.Context, interval time.Duration) {
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
			t.Sweep()
		}
	}
}

func (t *CredentialThrottle) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + t.clientIP.ClientIP(r)

			if ok, wait := t.Allow(key); !ok {
				metrics.RateLimitBlocked.WithLabelValues(r.URL.Path, "credential_"+scope).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(CeilSeconds(wait)))
				WriteError(w, r, commonerrors.ErrTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CeilSeconds rounds up so clients never retry too early.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
