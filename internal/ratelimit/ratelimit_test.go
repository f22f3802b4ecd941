package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secvault/internal/magic"
	"secvault/internal/store/memstore"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestHappyPathCheckAllowsFreshIdentifier(t *testing.T) {
	l := New(memstore.New())

	result, err := l.Check(context.Background(), "openai")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, magic.RateLimitMaxAttempts, result.AttemptsRemaining)
}

func TestHappyPathRecordFailureDecrementsAttemptsRemaining(t *testing.T) {
	l := New(memstore.New())
	ctx := context.Background()

	result, err := l.RecordFailure(ctx, "openai")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, magic.RateLimitMaxAttempts-1, result.AttemptsRemaining)
}

func TestHappyPathRecordFailureLocksOutAtMaxAttempts(t *testing.T) {
	l := New(memstore.New())
	ctx := context.Background()

	var last Result
	for i := 0; i < magic.RateLimitMaxAttempts; i++ {
		var err error
		last, err = l.RecordFailure(ctx, "openai")
		require.NoError(t, err)
	}

	assert.False(t, last.Allowed)
	assert.Equal(t, magic.RateLimitInitialLockout, last.RetryAfter)
}

func TestHappyPathCheckReflectsActiveLockout(t *testing.T) {
	l := New(memstore.New())
	ctx := context.Background()

	for i := 0; i < magic.RateLimitMaxAttempts; i++ {
		_, err := l.RecordFailure(ctx, "openai")
		require.NoError(t, err)
	}

	result, err := l.Check(ctx, "openai")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestHappyPathConsecutiveLockoutsDoubleEachTime(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := New(memstore.New()).WithClock(clock)
	ctx := context.Background()

	lockoutFor := func() time.Duration {
		var last Result
		for i := 0; i < magic.RateLimitMaxAttempts; i++ {
			var err error
			last, err = l.RecordFailure(ctx, "openai")
			require.NoError(t, err)
		}

		return last.RetryAfter
	}

	first := lockoutFor()
	assert.Equal(t, magic.RateLimitInitialLockout, first)

	clock.now = clock.now.Add(first + time.Second)
	second := lockoutFor()
	assert.Equal(t, magic.RateLimitInitialLockout*2, second)

	clock.now = clock.now.Add(second + time.Second)
	third := lockoutFor()
	assert.Equal(t, magic.RateLimitInitialLockout*4, third)
}

func TestHappyPathLockoutDurationCapsAtMaximum(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := New(memstore.New()).WithClock(clock)
	ctx := context.Background()

	var last Result
	for round := 0; round < 10; round++ {
		for i := 0; i < magic.RateLimitMaxAttempts; i++ {
			var err error
			last, err = l.RecordFailure(ctx, "openai")
			require.NoError(t, err)
		}

		clock.now = clock.now.Add(last.RetryAfter + time.Second)
	}

	assert.LessOrEqual(t, last.RetryAfter, magic.RateLimitMaxLockout)
}

func TestHappyPathRecordSuccessClearsStateIncludingConsecutiveLockouts(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := New(memstore.New()).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < magic.RateLimitMaxAttempts; i++ {
		_, err := l.RecordFailure(ctx, "openai")
		require.NoError(t, err)
	}

	clock.now = clock.now.Add(magic.RateLimitInitialLockout + time.Second)
	require.NoError(t, l.RecordSuccess(ctx, "openai"))

	result, err := l.Check(ctx, "openai")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, magic.RateLimitMaxAttempts, result.AttemptsRemaining)

	// A fresh round of failures after RecordSuccess must start back at
	// the initial lockout duration, not continue the backoff sequence.
	var last Result
	for i := 0; i < magic.RateLimitMaxAttempts; i++ {
		var err error
		last, err = l.RecordFailure(ctx, "openai")
		require.NoError(t, err)
	}

	assert.Equal(t, magic.RateLimitInitialLockout, last.RetryAfter)
}

func TestHappyPathWindowRolloverResetsAttempts(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := New(memstore.New()).WithClock(clock)
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, "openai")
	require.NoError(t, err)

	clock.now = clock.now.Add(magic.RateLimitWindow + time.Second)

	result, err := l.RecordFailure(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, magic.RateLimitMaxAttempts-1, result.AttemptsRemaining)
}

func TestHappyPathFormatLockoutMessageSingularAndPlural(t *testing.T) {
	assert.Equal(t, "Too many attempts. Try again in 1 second.", FormatLockoutMessage(time.Second))
	assert.Equal(t, "Too many attempts. Try again in 30 seconds.", FormatLockoutMessage(30*time.Second))
	assert.Equal(t, "Too many attempts. Try again in 1 minute.", FormatLockoutMessage(time.Minute))
	assert.Equal(t, "Too many attempts. Try again in 2 minutes.", FormatLockoutMessage(2*time.Minute))
}
