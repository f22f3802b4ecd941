// Package vault implements the Secure Key Vault (spec.md §4.4): at-rest
// authenticated encryption of provider API keys under a compound
// password, per-key metadata, and schema versioning.
package vault

import (
	"context"
	"encoding/json"
	"time"

	"secvault/internal/apperr"
	"secvault/internal/cryptoprim"
	"secvault/internal/devicebind"
	"secvault/internal/magic"
	"secvault/internal/providerid"
	"secvault/internal/store"
)

// Metadata is the non-secret information kept about a stored key.
type Metadata struct {
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// record is the wire shape of one stored key (spec.md §6).
type record struct {
	EncryptedKey cryptoprim.Envelope `json:"encryptedKey"`
	Provider     string              `json:"provider"`
	CreatedAt    int64               `json:"createdAt"`
	LastUsed     *int64              `json:"lastUsed,omitempty"`
}

// keyStore is the wire shape of the whole durable record (spec.md §6).
type keyStore struct {
	Version int                `json:"version"`
	Keys    map[string]*record `json:"keys"`
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Vault encrypts and decrypts provider API keys at rest.
type Vault struct {
	durable store.Durable
	binder  *devicebind.Binder
	clock   Clock
}

// New returns a Vault persisting through durable and deriving compound
// passwords through binder.
func New(durable store.Durable, binder *devicebind.Binder) *Vault {
	return &Vault{durable: durable, binder: binder, clock: systemClock{}}
}

// WithClock overrides the clock used for created-at/last-used-at
// timestamps. Intended for tests.
func (v *Vault) WithClock(c Clock) *Vault {
	v.clock = c
	return v
}

func (v *Vault) loadStore(ctx context.Context) (*keyStore, error) {
	raw, ok, err := v.durable.Get(ctx, magic.DurableKeyAPIKeyStore)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to read key store", err)
	}

	if !ok {
		return &keyStore{Version: magic.CurrentKeyStoreSchemaVersion, Keys: map[string]*record{}}, nil
	}

	var ks keyStore
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to parse key store", err)
	}

	if ks.Keys == nil {
		ks.Keys = map[string]*record{}
	}

	// Schema migration (spec.md §4.4): the current migration path simply
	// re-stamps the version. Re-encryption under newer parameters
	// requires the user password and is deferred to the next save.
	if ks.Version < magic.CurrentKeyStoreSchemaVersion {
		ks.Version = magic.CurrentKeyStoreSchemaVersion
	}

	return &ks, nil
}

func (v *Vault) saveStore(ctx context.Context, ks *keyStore) error {
	raw, err := json.Marshal(ks)
	if err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to encode key store", err)
	}

	if err := v.durable.Set(ctx, magic.DurableKeyAPIKeyStore, raw); err != nil {
		return apperr.New(apperr.CodeStorageError, "failed to persist key store", err)
	}

	return nil
}

// SaveKey encrypts apiKey under the compound password for userPassword
// and writes or replaces the record for provider. Exactly one record
// per provider is kept; LastUsedAt is cleared on (re)save.
func (v *Vault) SaveKey(ctx context.Context, provider providerid.ID, apiKey, userPassword string) error {
	compound, err := v.binder.CompoundPassword(ctx, userPassword)
	if err != nil {
		return err
	}

	envelope, err := cryptoprim.Encrypt([]byte(apiKey), compound)
	if err != nil {
		return err
	}

	ks, err := v.loadStore(ctx)
	if err != nil {
		return err
	}

	ks.Keys[string(provider)] = &record{
		EncryptedKey: envelope,
		Provider:     string(provider),
		CreatedAt:    v.clock.Now().UnixMilli(),
		LastUsed:     nil,
	}

	return v.saveStore(ctx, ks)
}

// GetKey decrypts and returns the API key stored for provider. Every
// invocation — success or failure — takes at least
// magic.GetKeyMinDuration wall-clock, defending against timing-based
// enumeration of provider names and reinforcing PBKDF2's natural
// levelling.
func (v *Vault) GetKey(ctx context.Context, provider providerid.ID, userPassword string) (apiKey string, err error) {
	started := time.Now()
	defer func() {
		if elapsed := time.Since(started); elapsed < magic.GetKeyMinDuration {
			time.Sleep(magic.GetKeyMinDuration - elapsed)
		}
	}()

	ks, loadErr := v.loadStore(ctx)
	if loadErr != nil {
		return "", loadErr
	}

	rec, ok := ks.Keys[string(provider)]
	if !ok {
		return "", apperr.New(apperr.CodeKeyNotFound, "no stored key for provider", nil)
	}

	compound, compoundErr := v.binder.CompoundPassword(ctx, userPassword)
	if compoundErr != nil {
		return "", compoundErr
	}

	plaintext, decErr := cryptoprim.Decrypt(rec.EncryptedKey, compound)
	if decErr != nil {
		return "", decErr
	}

	now := v.clock.Now().UnixMilli()
	rec.LastUsed = &now

	// The key was legitimately decrypted; a failure to persist the
	// updated last-used timestamp is not a reason to fail the read.
	_ = v.saveStore(ctx, ks)

	return string(plaintext), nil
}

// RemoveKey deletes the record for provider. No-op if absent.
func (v *Vault) RemoveKey(ctx context.Context, provider providerid.ID) error {
	ks, err := v.loadStore(ctx)
	if err != nil {
		return err
	}

	if _, ok := ks.Keys[string(provider)]; !ok {
		return nil
	}

	delete(ks.Keys, string(provider))

	return v.saveStore(ctx, ks)
}

// HasKey reports whether a record exists for provider.
func (v *Vault) HasKey(ctx context.Context, provider providerid.ID) (bool, error) {
	ks, err := v.loadStore(ctx)
	if err != nil {
		return false, err
	}

	_, ok := ks.Keys[string(provider)]

	return ok, nil
}

// ListProviders returns every provider with a stored record.
func (v *Vault) ListProviders(ctx context.Context) ([]providerid.ID, error) {
	ks, err := v.loadStore(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]providerid.ID, 0, len(ks.Keys))
	for p := range ks.Keys {
		out = append(out, providerid.ID(p))
	}

	return out, nil
}

// GetMetadata returns the created-at/last-used-at pair for provider, or
// nil if no record exists.
func (v *Vault) GetMetadata(ctx context.Context, provider providerid.ID) (*Metadata, error) {
	ks, err := v.loadStore(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := ks.Keys[string(provider)]
	if !ok {
		return nil, nil
	}

	md := &Metadata{CreatedAt: time.UnixMilli(rec.CreatedAt).UTC()}
	if rec.LastUsed != nil {
		t := time.UnixMilli(*rec.LastUsed).UTC()
		md.LastUsedAt = &t
	}

	return md, nil
}
