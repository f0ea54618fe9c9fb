package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker bounds every call with a timeout and stops calling
// through after Threshold consecutive infrastructure failures until
// ResetAfter has passed since the last one.
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	threshold   int
	timeout     time.Duration
	resetAfter  time.Duration
	name        string
	log         *logger.Logger
	clock       clock.Clock
	expected    []error
}

type CircuitBreakerConfig struct {
	Threshold  int
	Timeout    time.Duration
	ResetAfter time.Duration
	Name       string
	Logger     *logger.Logger
	Clock      clock.Clock
	// Expected lists sentinel errors that are normal outcomes of a call.
	Expected []error
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	clk := config.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &CircuitBreaker{
		threshold:  config.Threshold,
		timeout:    config.Timeout,
		resetAfter: config.ResetAfter,
		name:       config.Name,
		log:        config.Logger,
		clock:      clk,
		expected:   config.Expected,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.isOpenLocked()
}

func (cb *CircuitBreaker) isOpenLocked() bool {
	if cb.threshold <= 0 || cb.failures < cb.threshold {
		cb.setState(0)
		return false
	}

	if cb.clock.Since(cb.lastFailure) > cb.resetAfter {
		cb.failures = 0
		cb.lastFailure = time.Time{}
		cb.setState(0)
		return false
	}

	cb.setState(1)
	return true
}

func (cb *CircuitBreaker) setState(state float64) {
	if cb.name != "" {
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(state)
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isFailure(err) {
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.clock.Now()
	if cb.name != "" {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.name).Inc()
	}
	if cb.log != nil {
		cb.log.Warnf("circuit breaker [%s]: failure recorded (%d/%d)", cb.name, cb.failures, cb.threshold)
	}
}

// Call runs fn with a deadline derived from ctx. Missing rows and domain
// rejections are outcomes, not failures, and do not trip the breaker.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if cb.IsOpen() {
		if cb.log != nil {
			cb.log.Warnf("circuit breaker [%s]: circuit is open, rejecting request", cb.name)
		}
		return ErrCircuitOpen
	}

	callCtx := ctx
	if cb.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	err := fn(callCtx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	for _, expected := range cb.expected {
		if errors.Is(err, expected) {
			return false
		}
	}
	return !commonerrors.IsDomainError(err)
}
