// Package providerid defines the provider identifier type shared by
// every component that keys state by provider (vault, rate limiter,
// session cache, coordinator) so they never drift on normalization
// rules (spec.md §3: "case-insensitive on input, case-normalized
// (lower) for keying").
package providerid

import "strings"

// ID is a normalized provider identifier.
type ID string

// Normalize lower-cases and trims a raw, user-supplied provider string.
func Normalize(raw string) ID {
	return ID(strings.ToLower(strings.TrimSpace(raw)))
}

func (id ID) String() string { return string(id) }
