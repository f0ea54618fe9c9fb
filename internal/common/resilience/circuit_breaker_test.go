package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
)

func newBreaker(clk clock.Clock) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  2,
		Timeout:    50 * time.Millisecond,
		ResetAfter: 10 * time.Second,
		Clock:      clk,
	})
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newBreaker(clk)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		err := cb.Call(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}

	called := false
	err := cb.Call(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clk.Advance(11 * time.Second)
	err = cb.Call(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_OutcomesDoNotTrip(t *testing.T) {
	cb := newBreaker(nil)
	rejected := commonerrors.NewDomainError(commonerrors.KindInvalidRefreshToken, "invalid refresh token")

	for i := 0; i < 5; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return pgx.ErrNoRows })
		_ = cb.Call(context.Background(), func(context.Context) error { return rejected })
	}

	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_ExpectedErrorsDoNotTrip(t *testing.T) {
	notFound := errors.New("user not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  1,
		ResetAfter: time.Minute,
		Expected:   []error{notFound},
	})

	_ = cb.Call(context.Background(), func(context.Context) error { return notFound })

	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_AppliesTimeout(t *testing.T) {
	cb := newBreaker(nil)

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrCircuitOpen_MatchesOnlyItself(t *testing.T) {
	wrappedOpen := commonerrors.ErrInternal.WithMessage("failed to load user").WithCause(ErrCircuitOpen)
	otherInternal := commonerrors.ErrInternal.WithMessage("failed to load user").WithCause(errors.New("connection reset by peer"))

	assert.ErrorIs(t, wrappedOpen, ErrCircuitOpen)
	assert.NotErrorIs(t, otherInternal, ErrCircuitOpen)
	assert.NotErrorIs(t, commonerrors.ErrInternal, ErrCircuitOpen)
	assert.False(t, commonerrors.IsDomainError(ErrCircuitOpen))
}
