// Package devicebind derives the per-installation secret that binds
// stored ciphertext to this installation (spec.md §4.3). Ciphertext
// cannot be decrypted on a different installation even if the user
// password is known, because the device salt — and therefore the
// device secret — differs.
package devicebind

import (
	"context"
	"sync"

	"secvault/internal/apperr"
	"secvault/internal/cryptoprim"
	"secvault/internal/magic"
	"secvault/internal/store"
)

// InstallationIDProvider supplies a stable-per-install string (spec.md
// §6). The host is responsible for its stability; this package only
// consumes it.
type InstallationIDProvider interface {
	InstallationID(ctx context.Context) (string, error)
}

// Binder derives and caches the device secret and compound password.
type Binder struct {
	durable        store.Durable
	installationID InstallationIDProvider

	mu           sync.Mutex
	deviceSecret []byte // cached across calls, never persisted
}

// New returns a Binder reading/writing the device salt through durable.
func New(durable store.Durable, installationID InstallationIDProvider) *Binder {
	return &Binder{durable: durable, installationID: installationID}
}

// DeviceSecret returns the cached device secret, deriving and
// persisting a fresh device salt on first use if none exists yet.
func (b *Binder) DeviceSecret(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.deviceSecret != nil {
		return b.deviceSecret, nil
	}

	salt, err := b.loadOrCreateSalt(ctx)
	if err != nil {
		return nil, err
	}

	installationID, err := b.installationID.InstallationID(ctx)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to read installation id", err)
	}

	secret, err := cryptoprim.DeriveHKDFBytes([]byte(installationID), salt, magic.DeviceBindingInfo, magic.DeviceSecretLenBits)
	if err != nil {
		return nil, apperr.New(apperr.CodeKeyDerivationFailed, "failed to derive device secret", err)
	}

	b.deviceSecret = secret

	return secret, nil
}

// CompoundPassword derives the deterministic compound password fed to
// PBKDF2 when encrypting or decrypting a stored key. The same user
// password always reproduces the same compound password on the same
// installation; a different installation (different salt) always
// produces a different one.
func (b *Binder) CompoundPassword(ctx context.Context, userPassword string) (string, error) {
	secret, err := b.DeviceSecret(ctx)
	if err != nil {
		return "", err
	}

	compound, err := cryptoprim.DeriveHKDF([]byte(userPassword), secret, magic.CompoundPasswordInfo, magic.CompoundPasswordLenBits)
	if err != nil {
		return "", apperr.New(apperr.CodeKeyDerivationFailed, "failed to derive compound password", err)
	}

	return compound, nil
}

func (b *Binder) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	existing, ok, err := b.durable.Get(ctx, magic.DurableKeyDeviceSalt)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to read device salt", err)
	}

	if ok {
		return existing, nil
	}

	salt, err := cryptoprim.RandomBytes(magic.SaltLenBytes)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to generate device salt", err)
	}

	if err := b.durable.Set(ctx, magic.DurableKeyDeviceSalt, salt); err != nil {
		return nil, apperr.New(apperr.CodeStorageError, "failed to persist device salt", err)
	}

	return salt, nil
}
