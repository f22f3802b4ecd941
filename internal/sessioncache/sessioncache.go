// Package sessioncache implements the Session Cache (spec.md §4.6): an
// ephemeral, time-limited holder of decrypted provider API keys,
// sealed a second time under a process-runtime-only session key before
// ever touching the ephemeral store, with an inactivity timer scheduled
// through the host's alarm facility.
package sessioncache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"secvault/internal/alarm"
	"secvault/internal/apperr"
	"secvault/internal/cryptoprim"
	"secvault/internal/devicebind"
	"secvault/internal/events"
	"secvault/internal/magic"
	"secvault/internal/providerid"
	"secvault/internal/sessionsettings"
	"secvault/internal/store"
)

// Clock abstracts time.Now for deterministic expiry/inactivity tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// entry is the wire shape of one cached provider's decrypted key,
// sealed under the session key. The plaintext API key itself never
// appears here or anywhere in the ephemeral store (spec.md §3
// invariants).
type entry struct {
	Provider       string              `json:"provider"`
	EncryptedKey   cryptoprim.Envelope `json:"encryptedKey"`
	ExpiresAtMilli int64               `json:"expiresAt"`
}

// cacheRecord is the wire shape stored under
// magic.EphemeralKeyDecryptedCache.
type cacheRecord struct {
	Entries           map[string]*entry `json:"keys"`
	LastActivityMilli int64             `json:"lastActivity"`
}

// persistedSessionKey is the wire shape of the wrapped session key
// stored under magic.EphemeralKeyPersistedSession when persistence is
// enabled.
type persistedSessionKey struct {
	Wrapped      cryptoprim.Envelope `json:"wrapped"`
	ProtectorB64 string              `json:"protector"`
	CreatedAt    int64               `json:"createdAt"`
}

// Cache is the session cache. One Cache exists per running Coordinator.
type Cache struct {
	ephemeral      store.Ephemeral
	settings       *sessionsettings.Store
	scheduler      alarm.Scheduler
	bus            *events.Bus
	installationID devicebind.InstallationIDProvider
	clock          Clock

	mu         sync.Mutex
	sessionKey []byte
}

// New returns a Cache. Call Initialize before any cache operation.
func New(
	ephemeral store.Ephemeral,
	settings *sessionsettings.Store,
	scheduler alarm.Scheduler,
	bus *events.Bus,
	installationID devicebind.InstallationIDProvider,
) *Cache {
	c := &Cache{
		ephemeral:      ephemeral,
		settings:       settings,
		scheduler:      scheduler,
		bus:            bus,
		installationID: installationID,
		clock:          systemClock{},
	}

	scheduler.OnAlarm(magic.AlarmSessionTimeout, func() {
		_ = c.ClearAll(context.Background())
		bus.Publish(events.Event{Kind: events.SessionLocked})
	})

	return c
}

// WithClock overrides the clock. Intended for tests.
func (c *Cache) WithClock(clk Clock) *Cache {
	c.clock = clk
	return c
}

// Initialize sets the ephemeral store to trusted-context access and
// establishes the session key: restored from a persisted wrapped
// record if settings enable persistence and restoration succeeds,
// freshly generated otherwise.
func (c *Cache) Initialize(ctx context.Context) error {
	if err := c.ephemeral.SetAccessLevel(store.AccessLevelTrustedOnly); err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to set ephemeral access level", err)
	}

	settings, err := c.settings.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if settings.PersistSession {
		if restored, ok := c.restoreSessionKey(ctx); ok {
			c.sessionKey = restored
			return nil
		}
	}

	key, err := cryptoprim.RandomBytes(magic.AESKeyLenBytes)
	if err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to generate session key", err)
	}

	c.sessionKey = key

	if settings.PersistSession {
		if wrapErr := c.persistSessionKey(ctx, key); wrapErr != nil {
			// Wrapping failed; proceed in-memory-only and drop any stale
			// persisted entry rather than leave a record nothing can open.
			_ = c.ephemeral.Remove(ctx, magic.EphemeralKeyPersistedSession)
		}
	} else {
		_ = c.ephemeral.Remove(ctx, magic.EphemeralKeyPersistedSession)
	}

	return nil
}

// restoreSessionKey attempts to unwrap a persisted session key. Any
// failure (missing record, malformed JSON, decryption failure) is
// treated as "no usable persisted key", not an error.
func (c *Cache) restoreSessionKey(ctx context.Context) ([]byte, bool) {
	raw, ok, err := c.ephemeral.Get(ctx, magic.EphemeralKeyPersistedSession)
	if err != nil || !ok {
		return nil, false
	}

	var persisted persistedSessionKey
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, false
	}

	protector, err := base64.StdEncoding.DecodeString(persisted.ProtectorB64)
	if err != nil {
		return nil, false
	}

	installationID, err := c.installationID.InstallationID(ctx)
	if err != nil {
		return nil, false
	}

	wrapKey, err := cryptoprim.DeriveHKDFBytes([]byte(installationID), protector, magic.SessionKeyProtectionInfo, magic.DeviceSecretLenBits)
	if err != nil {
		return nil, false
	}

	key, err := cryptoprim.DecryptWithKey(persisted.Wrapped, wrapKey)
	if err != nil {
		return nil, false
	}

	return key, true
}

// persistSessionKey wraps key under a fresh protector salt and writes
// it to the ephemeral store.
func (c *Cache) persistSessionKey(ctx context.Context, key []byte) error {
	protector, err := cryptoprim.RandomBytes(magic.SaltLenBytes)
	if err != nil {
		return err
	}

	installationID, err := c.installationID.InstallationID(ctx)
	if err != nil {
		return err
	}

	wrapKey, err := cryptoprim.DeriveHKDFBytes([]byte(installationID), protector, magic.SessionKeyProtectionInfo, magic.DeviceSecretLenBits)
	if err != nil {
		return err
	}

	wrapped, err := cryptoprim.EncryptWithKey(key, wrapKey)
	if err != nil {
		return err
	}

	persisted := persistedSessionKey{
		Wrapped:      wrapped,
		ProtectorB64: base64.StdEncoding.EncodeToString(protector),
		CreatedAt:    c.clock.Now().UnixMilli(),
	}

	encoded, err := json.Marshal(persisted)
	if err != nil {
		return err
	}

	return c.ephemeral.Set(ctx, magic.EphemeralKeyPersistedSession, encoded)
}

func (c *Cache) loadRecord(ctx context.Context) (*cacheRecord, error) {
	raw, ok, err := c.ephemeral.Get(ctx, magic.EphemeralKeyDecryptedCache)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to read session cache", err)
	}

	if !ok {
		return &cacheRecord{Entries: map[string]*entry{}}, nil
	}

	var rec cacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return &cacheRecord{Entries: map[string]*entry{}}, nil
	}

	if rec.Entries == nil {
		rec.Entries = map[string]*entry{}
	}

	return &rec, nil
}

func (c *Cache) saveRecord(ctx context.Context, rec *cacheRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to encode session cache", err)
	}

	if err := c.ephemeral.Set(ctx, magic.EphemeralKeyDecryptedCache, raw); err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to persist session cache", err)
	}

	return nil
}

// touch updates last-activity and re-arms the inactivity timer. Called
// whenever an operation observes a non-empty cache.
func (c *Cache) touch(ctx context.Context, rec *cacheRecord) {
	rec.LastActivityMilli = c.clock.Now().UnixMilli()

	settings, err := c.settings.Load(ctx)
	if err != nil {
		return
	}

	delay := time.Duration(settings.InactivityTimeoutMinutes) * time.Minute
	c.scheduler.Create(magic.AlarmSessionTimeout, delay)
}

// CacheKey seals plaintext under the session key and stores it for
// provider with a fresh expiry computed from session settings.
func (c *Cache) CacheKey(ctx context.Context, provider providerid.ID, plaintext string) error {
	settings, err := c.settings.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	sessionKey := c.sessionKey
	c.mu.Unlock()

	inner, err := cryptoprim.EncryptWithKey([]byte(plaintext), sessionKey)
	if err != nil {
		return err
	}

	rec, err := c.loadRecord(ctx)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	expiresAt := now.Add(time.Duration(settings.SessionExpiryMinutes) * time.Minute)

	rec.Entries[string(provider)] = &entry{
		Provider:       string(provider),
		EncryptedKey:   inner,
		ExpiresAtMilli: expiresAt.UnixMilli(),
	}

	c.touch(ctx, rec)

	if err := c.saveRecord(ctx, rec); err != nil {
		return err
	}

	c.bus.Publish(events.Event{Kind: events.SessionUnlocked, Provider: string(provider)})

	return nil
}

// GetCachedKey returns the cached plaintext for provider, or ok=false
// if absent, expired, or no longer decryptable under the current
// session key (e.g. a process restart discarded an unpersisted
// session key). Reading does not extend expiry.
func (c *Cache) GetCachedKey(ctx context.Context, provider providerid.ID) (plaintext string, ok bool, err error) {
	rec, err := c.loadRecord(ctx)
	if err != nil {
		return "", false, err
	}

	ent, found := rec.Entries[string(provider)]
	if !found {
		return "", false, nil
	}

	now := c.clock.Now()
	if now.UnixMilli() >= ent.ExpiresAtMilli {
		delete(rec.Entries, string(provider))
		_ = c.saveRecord(ctx, rec)

		return "", false, nil
	}

	c.mu.Lock()
	sessionKey := c.sessionKey
	c.mu.Unlock()

	raw, decErr := cryptoprim.DecryptWithKey(ent.EncryptedKey, sessionKey)
	if decErr != nil {
		delete(rec.Entries, string(provider))
		_ = c.saveRecord(ctx, rec)

		return "", false, nil
	}

	c.touch(ctx, rec)
	_ = c.saveRecord(ctx, rec)

	return string(raw), true, nil
}

// RemoveCachedKey deletes the entry for provider. No-op if absent.
func (c *Cache) RemoveCachedKey(ctx context.Context, provider providerid.ID) error {
	rec, err := c.loadRecord(ctx)
	if err != nil {
		return err
	}

	if _, found := rec.Entries[string(provider)]; !found {
		return nil
	}

	delete(rec.Entries, string(provider))

	return c.saveRecord(ctx, rec)
}

// ClearAll removes every cached entry and cancels the inactivity
// timer.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.scheduler.Clear(magic.AlarmSessionTimeout)

	return c.saveRecord(ctx, &cacheRecord{Entries: map[string]*entry{}})
}

// HasUnlockedKeys reports whether any entry is currently unexpired.
func (c *Cache) HasUnlockedKeys(ctx context.Context) (bool, error) {
	providers, err := c.UnlockedProviders(ctx)
	if err != nil {
		return false, err
	}

	return len(providers) > 0, nil
}

// UnlockedProviders returns every provider with a currently unexpired
// entry.
func (c *Cache) UnlockedProviders(ctx context.Context) ([]providerid.ID, error) {
	rec, err := c.loadRecord(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now().UnixMilli()

	out := make([]providerid.ID, 0, len(rec.Entries))
	for p, ent := range rec.Entries {
		if now < ent.ExpiresAtMilli {
			out = append(out, providerid.ID(p))
		}
	}

	return out, nil
}

// ExtendSession refreshes provider's expiry to now + session-expiry
// and re-arms the inactivity timer. Returns false if the entry is
// missing or already expired.
func (c *Cache) ExtendSession(ctx context.Context, provider providerid.ID) (bool, error) {
	settings, err := c.settings.Load(ctx)
	if err != nil {
		return false, err
	}

	rec, err := c.loadRecord(ctx)
	if err != nil {
		return false, err
	}

	ent, found := rec.Entries[string(provider)]
	now := c.clock.Now()

	if !found || now.UnixMilli() >= ent.ExpiresAtMilli {
		return false, nil
	}

	ent.ExpiresAtMilli = now.Add(time.Duration(settings.SessionExpiryMinutes) * time.Minute).UnixMilli()

	c.touch(ctx, rec)

	if err := c.saveRecord(ctx, rec); err != nil {
		return false, err
	}

	return true, nil
}
