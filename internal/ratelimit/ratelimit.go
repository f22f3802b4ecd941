// Package ratelimit implements the per-identifier failed-attempt
// accounting, exponential-backoff lockout, and rolling-window reset
// specified in spec.md §4.5. State survives process restarts because it
// is persisted in the host's ephemeral store, keyed by
// magic.EphemeralKeyRateLimitPrefix + identifier — the same identifier
// space the vault keys its providers by.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"secvault/internal/apperr"
	"secvault/internal/magic"
	"secvault/internal/store"
)

// Clock abstracts time.Now for deterministic window/lockout tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// state is the wire shape of one identifier's rate-limit record.
type state struct {
	Attempts            int   `json:"attempts"`
	FirstAttemptAtMilli int64 `json:"firstAttemptAt"`
	LockedUntilMilli    int64 `json:"lockedUntil"`
	ConsecutiveLockouts int   `json:"consecutiveLockouts"`
}

// Result is the outcome of Check or RecordFailure.
type Result struct {
	Allowed bool
	// RetryAfter is meaningful only when Allowed is false.
	RetryAfter time.Duration
	// AttemptsRemaining is meaningful only when Allowed is true.
	AttemptsRemaining int
}

// Limiter enforces spec.md §4.5's state machine. Operations on a single
// identifier are serialized by virtue of being read-modify-write
// against the ephemeral store; concurrent updates to different
// identifiers never contend (spec.md §5).
type Limiter struct {
	ephemeral store.Ephemeral
	clock     Clock
}

// New returns a Limiter persisting state through ephemeral.
func New(ephemeral store.Ephemeral) *Limiter {
	return &Limiter{ephemeral: ephemeral, clock: systemClock{}}
}

// WithClock overrides the clock. Intended for tests.
func (l *Limiter) WithClock(c Clock) *Limiter {
	l.clock = c
	return l
}

func storageKey(id string) string {
	return magic.EphemeralKeyRateLimitPrefix + id
}

func (l *Limiter) load(ctx context.Context, id string) (*state, error) {
	raw, ok, err := l.ephemeral.Get(ctx, storageKey(id))
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to read rate-limit state", err)
	}

	if !ok {
		return &state{}, nil
	}

	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to parse rate-limit state", err)
	}

	return &st, nil
}

func (l *Limiter) save(ctx context.Context, id string, st *state) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to encode rate-limit state", err)
	}

	if err := l.ephemeral.Set(ctx, storageKey(id), raw); err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to persist rate-limit state", err)
	}

	return nil
}

// Check reports whether id may attempt an unlock right now, without
// recording an attempt. If locked, it reports the remaining lockout; if
// the attempt window has rolled over, it reports full fresh quota.
func (l *Limiter) Check(ctx context.Context, id string) (Result, error) {
	st, err := l.load(ctx, id)
	if err != nil {
		return Result{}, err
	}

	now := l.clock.Now()

	if st.LockedUntilMilli > 0 && now.UnixMilli() < st.LockedUntilMilli {
		return Result{Allowed: false, RetryAfter: time.Duration(st.LockedUntilMilli-now.UnixMilli()) * time.Millisecond}, nil
	}

	if st.FirstAttemptAtMilli == 0 || now.Sub(time.UnixMilli(st.FirstAttemptAtMilli)) > magic.RateLimitWindow {
		return Result{Allowed: true, AttemptsRemaining: magic.RateLimitMaxAttempts}, nil
	}

	return Result{Allowed: true, AttemptsRemaining: magic.RateLimitMaxAttempts - st.Attempts}, nil
}

// RecordFailure records a failed attempt for id, applying exponential
// backoff once the attempt count reaches the per-window maximum.
func (l *Limiter) RecordFailure(ctx context.Context, id string) (Result, error) {
	st, err := l.load(ctx, id)
	if err != nil {
		return Result{}, err
	}

	now := l.clock.Now()

	if st.FirstAttemptAtMilli == 0 || now.Sub(time.UnixMilli(st.FirstAttemptAtMilli)) > magic.RateLimitWindow {
		st.Attempts = 0
		st.FirstAttemptAtMilli = now.UnixMilli()
	}

	st.Attempts++

	if st.Attempts >= magic.RateLimitMaxAttempts {
		lockout := backoffDuration(st.ConsecutiveLockouts)
		st.LockedUntilMilli = now.Add(lockout).UnixMilli()
		st.ConsecutiveLockouts++
		st.Attempts = 0
		st.FirstAttemptAtMilli = 0

		if err := l.save(ctx, id, st); err != nil {
			return Result{}, err
		}

		return Result{Allowed: false, RetryAfter: lockout}, nil
	}

	if err := l.save(ctx, id, st); err != nil {
		return Result{}, err
	}

	return Result{Allowed: true, AttemptsRemaining: magic.RateLimitMaxAttempts - st.Attempts}, nil
}

// RecordSuccess removes id's state entirely, resetting
// consecutive-lockouts along with the attempt counter.
func (l *Limiter) RecordSuccess(ctx context.Context, id string) error {
	if err := l.ephemeral.Remove(ctx, storageKey(id)); err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to clear rate-limit state", err)
	}

	return nil
}

// backoffDuration computes the nth consecutive lockout duration:
// min(initial * multiplier^n, max).
func backoffDuration(consecutiveLockouts int) time.Duration {
	lockout := magic.RateLimitInitialLockout

	for i := 0; i < consecutiveLockouts; i++ {
		lockout *= magic.RateLimitBackoffMultipler
		if lockout >= magic.RateLimitMaxLockout {
			return magic.RateLimitMaxLockout
		}
	}

	if lockout > magic.RateLimitMaxLockout {
		return magic.RateLimitMaxLockout
	}

	return lockout
}

// FormatLockoutMessage renders a human-readable lockout message.
func FormatLockoutMessage(retryAfter time.Duration) string {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 60 {
		if seconds == 1 {
			return "Too many attempts. Try again in 1 second."
		}

		return fmt.Sprintf("Too many attempts. Try again in %d seconds.", seconds)
	}

	minutes := seconds / 60
	if minutes == 1 {
		return "Too many attempts. Try again in 1 minute."
	}

	return fmt.Sprintf("Too many attempts. Try again in %d minutes.", minutes)
}
