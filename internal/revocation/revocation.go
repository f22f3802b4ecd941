// Package revocation implements the Revocation Detector (spec.md §4.8):
// it recognizes ciphertext that can never be decrypted again on this
// installation because the device salt that bound it has been lost
// (uninstall/reinstall, or a fresh profile sharing the durable store).
package revocation

import (
	"context"
	"encoding/json"

	"secvault/internal/magic"
	"secvault/internal/providerid"
	"secvault/internal/store"
)

// keyStoreShape mirrors only the fields this package needs from the
// durable key-store record (spec.md §6); it does not decrypt or touch
// any ciphertext.
type keyStoreShape struct {
	Keys map[string]json.RawMessage `json:"keys"`
}

// Report is the outcome of CheckForOrphanedKeys.
type Report struct {
	HasOrphans   bool
	Providers    []providerid.ID
	HumanMessage string
}

// Detector reads the durable store directly; it has no dependency on
// the vault package because it must function even when the vault's
// own reads would be pointless (no device salt means no decryption is
// possible regardless).
type Detector struct {
	durable store.Durable
}

// New returns a Detector over durable.
func New(durable store.Durable) *Detector {
	return &Detector{durable: durable}
}

// CheckForOrphanedKeys reports every stored provider as orphaned when
// the key store is non-empty but the device salt is absent. Any
// storage error degrades silently to "no orphans" — a detector that
// cannot prove a problem must not invent one.
func (d *Detector) CheckForOrphanedKeys(ctx context.Context) Report {
	keysRaw, ok, err := d.durable.Get(ctx, magic.DurableKeyAPIKeyStore)
	if err != nil || !ok {
		return Report{}
	}

	var ks keyStoreShape
	if err := json.Unmarshal(keysRaw, &ks); err != nil || len(ks.Keys) == 0 {
		return Report{}
	}

	_, saltOK, err := d.durable.Get(ctx, magic.DurableKeyDeviceSalt)
	if err != nil {
		return Report{}
	}

	if saltOK {
		return Report{}
	}

	providers := make([]providerid.ID, 0, len(ks.Keys))
	for p := range ks.Keys {
		providers = append(providers, providerid.ID(p))
	}

	return Report{
		HasOrphans:   true,
		Providers:    providers,
		HumanMessage: "Stored API keys cannot be unlocked on this installation because the device binding was lost. Remove them and re-save.",
	}
}

// CleanupOrphanedKeys removes the entire key store entry. It does not
// re-check for orphans first; callers are expected to have already
// confirmed via CheckForOrphanedKeys.
func (d *Detector) CleanupOrphanedKeys(ctx context.Context) error {
	return d.durable.Remove(ctx, magic.DurableKeyAPIKeyStore)
}
