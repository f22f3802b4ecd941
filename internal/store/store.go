// Package store defines the host-supplied key-value persistence
// contracts the vault core is built against (spec.md §4.2, §6). The
// core never talks to a database directly; it talks to a Durable store
// and an Ephemeral store, both of which a host (browser extension,
// desktop shell, CLI) supplies.
package store

import "context"

// ChangeListener is invoked when a key's value changes, including
// changes made by a different process attached to the same store.
type ChangeListener func(key string, newValue []byte)

// KV is the minimal key-value surface both namespaces share. Values are
// opaque byte slices; callers own their own JSON (or other) encoding.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	OnChange(listener ChangeListener) (unsubscribe func())
}

// AccessLevel restricts which trust contexts may observe an Ephemeral
// store's change notifications. Enforcement is best-effort on the
// host's part (spec.md §4.2); the session cache's secondary encryption
// layer (spec.md §4.6) exists because this cannot be fully trusted.
type AccessLevel int

const (
	// AccessLevelDefault is whatever the host's default visibility is.
	AccessLevelDefault AccessLevel = iota
	// AccessLevelTrustedOnly restricts visibility to trusted contexts.
	AccessLevelTrustedOnly
)

// Durable is the persistent namespace: the stored key store, the device
// salt, and session settings live here and survive process restarts.
type Durable interface {
	KV
}

// Ephemeral is the process-session-scoped namespace: the session cache,
// rate-limit state, and optionally the wrapped session key live here.
// It is expected to vanish across a full process/browser restart, but
// not across the lighter-weight worker suspensions some hosts perform.
type Ephemeral interface {
	KV
	SetAccessLevel(level AccessLevel) error
}
