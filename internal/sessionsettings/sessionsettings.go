// Package sessionsettings implements the session-settings schema and its
// mandatory sanitization (spec.md §4.7). Sanitization runs before any
// use of the values, on every load and every save, because the
// persisted shape may have been tampered with or predate a bounds
// change.
package sessionsettings

import (
	"context"
	"encoding/json"

	"secvault/internal/apperr"
	"secvault/internal/magic"
	"secvault/internal/store"
)

// Settings is always the sanitized shape; there is no unsanitized
// variant exposed outside this package.
type Settings struct {
	PersistSession           bool
	SessionExpiryMinutes     int
	InactivityTimeoutMinutes int
}

// Default returns the specified defaults.
func Default() Settings {
	return Settings{
		PersistSession:           false,
		SessionExpiryMinutes:     magic.SessionExpiryDefaultMinutes,
		InactivityTimeoutMinutes: magic.InactivityTimeoutDefaultMin,
	}
}

// raw is the possibly-untrusted wire shape read from persistent storage.
// Fields are interface{}-typed in the source system this was ported
// from; here they are typed but Sanitize still treats out-of-range or
// zero-value inputs (e.g. an Unmarshal of malformed JSON that leaves a
// field at its zero value) the same way a dynamically-typed host would.
type raw struct {
	PersistSession           *bool `json:"persistSession"`
	SessionExpiryMinutes     *int  `json:"sessionExpiryMinutes"`
	InactivityTimeoutMinutes *int  `json:"inactivityTimeoutMinutes"`
}

// Sanitize clamps values to their bounds and replaces missing/invalid
// values with the default. It is idempotent: Sanitize(Sanitize(x)) ==
// Sanitize(x), and its output always satisfies the documented bounds.
func Sanitize(s Settings) Settings {
	out := Default()

	if s.SessionExpiryMinutes != 0 {
		out.SessionExpiryMinutes = clamp(s.SessionExpiryMinutes, magic.SessionExpiryMinMinutes, magic.SessionExpiryMaxMinutes)
	}

	if s.InactivityTimeoutMinutes != 0 {
		out.InactivityTimeoutMinutes = clamp(s.InactivityTimeoutMinutes, magic.InactivityTimeoutMinMinutes, magic.InactivityTimeoutMaxMinutes)
	}

	out.PersistSession = s.PersistSession

	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}

	if v > max {
		return max
	}

	return v
}

// ShouldShowSecurityWarning is advisory, not enforced: true when expiry
// is at or beyond the maximum bound.
func ShouldShowSecurityWarning(expiryMinutes int) bool {
	return expiryMinutes >= magic.SecurityWarningExpiryThreshold
}

// Store persists and loads sanitized Settings through the durable
// namespace under magic.DurableKeySessionSettings, invalidating an
// in-memory memo whenever the underlying key changes (spec.md §4.6
// "Settings cache", §5 "Ordering guarantees").
type Store struct {
	durable store.Durable

	memo    *Settings
	unsub   func()
}

// NewStore returns a Store backed by durable, subscribing to change
// notifications so a concurrently observed settings write invalidates
// the memo atomically.
func NewStore(durable store.Durable) *Store {
	s := &Store{durable: durable}

	s.unsub = durable.OnChange(func(key string, _ []byte) {
		if key == magic.DurableKeySessionSettings {
			s.memo = nil
		}
	})

	return s
}

// Close unsubscribes from change notifications.
func (s *Store) Close() {
	if s.unsub != nil {
		s.unsub()
	}
}

// Load returns the memoized sanitized settings, reading and sanitizing
// from durable storage on a cold cache.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	if s.memo != nil {
		return *s.memo, nil
	}

	rawBytes, ok, err := s.durable.Get(ctx, magic.DurableKeySessionSettings)
	if err != nil {
		return Settings{}, apperr.New(apperr.CodeStorageError, "failed to read session settings", err)
	}

	if !ok {
		sanitized := Sanitize(Settings{})
		s.memo = &sanitized

		return sanitized, nil
	}

	var r raw
	if err := json.Unmarshal(rawBytes, &r); err != nil {
		sanitized := Sanitize(Settings{})
		s.memo = &sanitized

		return sanitized, nil
	}

	unsanitized := Settings{}
	if r.PersistSession != nil {
		unsanitized.PersistSession = *r.PersistSession
	}

	if r.SessionExpiryMinutes != nil {
		unsanitized.SessionExpiryMinutes = *r.SessionExpiryMinutes
	}

	if r.InactivityTimeoutMinutes != nil {
		unsanitized.InactivityTimeoutMinutes = *r.InactivityTimeoutMinutes
	}

	sanitized := Sanitize(unsanitized)
	s.memo = &sanitized

	return sanitized, nil
}

// Save sanitizes and persists settings, updating the memo immediately.
func (s *Store) Save(ctx context.Context, settings Settings) error {
	sanitized := Sanitize(settings)

	payload := raw{
		PersistSession:           &sanitized.PersistSession,
		SessionExpiryMinutes:     &sanitized.SessionExpiryMinutes,
		InactivityTimeoutMinutes: &sanitized.InactivityTimeoutMinutes,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to encode session settings", err)
	}

	if err := s.durable.Set(ctx, magic.DurableKeySessionSettings, encoded); err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to persist session settings", err)
	}

	s.memo = &sanitized

	return nil
}
