package main

import (
	"errors"
	"fmt"

	"secvault/internal/apperr"
	"secvault/internal/ratelimit"
)

// describeError renders an apperr.Error (or any other error) into a
// single user-facing line. Rate-limit and wrong-password lockouts get
// the coarse-grained human message; everything else gets its summary.
func describeError(err error) string {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	switch appErr.Code {
	case apperr.CodeRateLimited:
		return ratelimit.FormatLockoutMessage(appErr.RetryAfter)
	case apperr.CodeWrongPassword:
		if appErr.RetryAfter > 0 {
			return ratelimit.FormatLockoutMessage(appErr.RetryAfter)
		}

		if appErr.HasAttemptsRemaining {
			return fmt.Sprintf("Incorrect password. %d attempt(s) remaining.", appErr.AttemptsRemaining)
		}

		return "Incorrect password."
	case apperr.CodeInvalidPassword:
		msg := "Password does not meet strength requirements:"
		for _, req := range appErr.FailedRequirements {
			msg += "\n  - " + req
		}

		return msg
	case apperr.CodePasswordsMismatch:
		return "Password and confirmation do not match."
	case apperr.CodeInvalidAPIKey:
		return appErr.Summary
	case apperr.CodeKeyNotFound:
		return "No stored key for that provider."
	default:
		return appErr.Summary
	}
}
