// Package apperr defines the typed error envelope the coordinator uses to
// surface the vault's error taxonomy (spec.md §7) across package
// boundaries without ever leaking plaintext, password material, or
// derived keys in an error message.
package apperr

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Code is a proprietary, stable identifier for an error kind. It is safe
// to log, display, and compare across versions.
type Code string

// Lower-layer error kinds (spec.md §4.1, §4.4, §4.2). These never
// distinguish "wrong password" from "tampered ciphertext".
const (
	CodeKeyDerivationFailed Code = "KEY_DERIVATION_FAILED"
	CodeEncryptionFailed    Code = "ENCRYPTION_FAILED"
	CodeDecryptionFailed    Code = "DECRYPTION_FAILED"
	CodeInvalidData         Code = "INVALID_DATA"
	CodeKeyNotFound         Code = "KEY_NOT_FOUND"
	CodeStorageError        Code = "STORAGE_ERROR"
)

// Coordinator-level error kinds (spec.md §7).
const (
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeInvalidPassword   Code = "INVALID_PASSWORD"
	CodeInvalidAPIKey     Code = "INVALID_API_KEY"
	CodeWrongPassword     Code = "WRONG_PASSWORD"
	CodePasswordsMismatch Code = "PASSWORDS_MISMATCH"
)

// Error is the envelope every taxonomy error is wrapped in. It carries a
// correlation ID and a UTC timestamp so a host can log and a user can
// report feedback on a specific failure without exposing internals.
type Error struct {
	ID        uuid.UUID
	Code      Code
	Summary   string
	Err       error
	Timestamp time.Time

	// RetryAfter is set for CodeRateLimited and CodeWrongPassword when a
	// lockout accompanies the failure.
	RetryAfter time.Duration
	// AttemptsRemaining is set for CodeWrongPassword when no lockout has
	// (yet) been triggered.
	AttemptsRemaining int
	// HasAttemptsRemaining distinguishes "zero attempts remaining" from
	// "this error kind doesn't carry an attempts count".
	HasAttemptsRemaining bool
	// FailedRequirements is set for CodeInvalidPassword: the aggregated
	// list of strength requirements the candidate password failed.
	FailedRequirements []string
}

// New builds an Error, stamping a fresh correlation ID and the current
// UTC time.
func New(code Code, summary string, err error) *Error {
	return &Error{
		ID:        uuid.New(),
		Code:      code,
		Summary:   summary,
		Err:       err,
		Timestamp: time.Now().UTC(),
	}
}

// WithRetryAfter sets RetryAfter and returns e for chaining.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// WithAttemptsRemaining sets AttemptsRemaining and returns e for
// chaining.
func (e *Error) WithAttemptsRemaining(n int) *Error {
	e.AttemptsRemaining = n
	e.HasAttemptsRemaining = true

	return e
}

// WithFailedRequirements sets FailedRequirements and returns e for
// chaining.
func (e *Error) WithFailedRequirements(reqs []string) *Error {
	e.FailedRequirements = reqs
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %s", e.Code, e.Summary, e.ID, e.Err)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Summary, e.ID)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code, so callers
// can use errors.Is(err, apperr.New(apperr.CodeKeyNotFound, "", nil)) or,
// more commonly, the Is-by-code helpers below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == other.Code
}

// HasCode reports whether err is, or wraps, an *apperr.Error carrying code.
func HasCode(err error, code Code) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.Code == code
}
