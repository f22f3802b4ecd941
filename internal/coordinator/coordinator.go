// Package coordinator implements the Coordinator/Manager façade
// (spec.md §4.9): the public surface orchestrating validation,
// rate-limiting, the vault, and the session cache into single compound
// operations.
package coordinator

import (
	"context"

	"secvault/internal/apperr"
	"secvault/internal/credcheck"
	"secvault/internal/providerid"
	"secvault/internal/ratelimit"
	"secvault/internal/sessioncache"
	"secvault/internal/vault"
)

// ProviderStatus is one entry of ListProviders' result.
type ProviderStatus struct {
	Provider   providerid.ID
	IsUnlocked bool
	Metadata   *vault.Metadata
}

// Coordinator is the public façade. A host constructs exactly one per
// running vault instance.
type Coordinator struct {
	limiter *ratelimit.Limiter
	vault   *vault.Vault
	cache   *sessioncache.Cache
}

// New returns a Coordinator wired to the given components. Call
// Initialize before any other method.
func New(limiter *ratelimit.Limiter, v *vault.Vault, cache *sessioncache.Cache) *Coordinator {
	return &Coordinator{limiter: limiter, vault: v, cache: cache}
}

// Initialize prepares the session cache (ephemeral access level,
// session key establishment).
func (c *Coordinator) Initialize(ctx context.Context) error {
	return c.cache.Initialize(ctx)
}

// SaveRequest is the input to SaveKey.
type SaveRequest struct {
	Provider        providerid.ID
	APIKey          string
	Password        string
	ConfirmPassword string
}

// SaveKey validates the request, saves the encrypted key to the vault,
// and caches it for immediate use.
func (c *Coordinator) SaveKey(ctx context.Context, req SaveRequest) error {
	if req.Password != req.ConfirmPassword {
		return apperr.New(apperr.CodePasswordsMismatch, "password and confirmation do not match", nil)
	}

	if !credcheck.IsAcceptable(req.Password) {
		report := credcheck.ScorePassword(req.Password)
		return apperr.New(apperr.CodeInvalidPassword, "password does not meet strength requirements", nil).
			WithFailedRequirements(report.FailedRequirements)
	}

	keyResult := credcheck.ValidateAPIKey(req.Provider, req.APIKey)
	if !keyResult.Valid {
		return apperr.New(apperr.CodeInvalidAPIKey, keyResult.Error, nil)
	}

	if err := c.vault.SaveKey(ctx, req.Provider, keyResult.SanitizedKey, req.Password); err != nil {
		return err
	}

	return c.cache.CacheKey(ctx, req.Provider, keyResult.SanitizedKey)
}

// Unlock returns the API key for provider, consulting the session
// cache before ever deriving a key or touching the rate limiter's
// failure path.
func (c *Coordinator) Unlock(ctx context.Context, provider providerid.ID, password string) (string, error) {
	check, err := c.limiter.Check(ctx, string(provider))
	if err != nil {
		return "", err
	}

	if !check.Allowed {
		return "", apperr.New(apperr.CodeRateLimited, "too many attempts", nil).WithRetryAfter(check.RetryAfter)
	}

	if cached, ok, cacheErr := c.cache.GetCachedKey(ctx, provider); cacheErr == nil && ok {
		_ = c.limiter.RecordSuccess(ctx, string(provider))
		return cached, nil
	}

	apiKey, err := c.vault.GetKey(ctx, provider, password)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeKeyNotFound) {
			return "", err
		}

		result, failErr := c.limiter.RecordFailure(ctx, string(provider))
		if failErr != nil {
			return "", failErr
		}

		wrongPassword := apperr.New(apperr.CodeWrongPassword, "incorrect password", nil)
		if !result.Allowed {
			return "", wrongPassword.WithRetryAfter(result.RetryAfter)
		}

		return "", wrongPassword.WithAttemptsRemaining(result.AttemptsRemaining)
	}

	if err := c.limiter.RecordSuccess(ctx, string(provider)); err != nil {
		return "", err
	}

	if err := c.cache.CacheKey(ctx, provider, apiKey); err != nil {
		return "", err
	}

	return apiKey, nil
}

// Lock removes provider from the session cache only.
func (c *Coordinator) Lock(ctx context.Context, provider providerid.ID) error {
	return c.cache.RemoveCachedKey(ctx, provider)
}

// LockAll clears the entire session cache.
func (c *Coordinator) LockAll(ctx context.Context) error {
	return c.cache.ClearAll(ctx)
}

// DeleteKey removes provider from both the cache and the vault.
func (c *Coordinator) DeleteKey(ctx context.Context, provider providerid.ID) error {
	if err := c.cache.RemoveCachedKey(ctx, provider); err != nil {
		return err
	}

	return c.vault.RemoveKey(ctx, provider)
}

// HasKey reports whether the vault has a stored record for provider.
func (c *Coordinator) HasKey(ctx context.Context, provider providerid.ID) (bool, error) {
	return c.vault.HasKey(ctx, provider)
}

// IsUnlocked reports whether provider currently has an unexpired
// session-cache entry.
func (c *Coordinator) IsUnlocked(ctx context.Context, provider providerid.ID) (bool, error) {
	providers, err := c.cache.UnlockedProviders(ctx)
	if err != nil {
		return false, err
	}

	for _, p := range providers {
		if p == provider {
			return true, nil
		}
	}

	return false, nil
}

// GetUnlockedKey is a cache-only lookup; it never attempts decryption.
func (c *Coordinator) GetUnlockedKey(ctx context.Context, provider providerid.ID) (string, bool, error) {
	return c.cache.GetCachedKey(ctx, provider)
}

// ListProviders merges the vault's stored-record listing with the
// session cache's unlock state.
func (c *Coordinator) ListProviders(ctx context.Context) ([]ProviderStatus, error) {
	providers, err := c.vault.ListProviders(ctx)
	if err != nil {
		return nil, err
	}

	unlocked, err := c.cache.UnlockedProviders(ctx)
	if err != nil {
		return nil, err
	}

	unlockedSet := make(map[providerid.ID]struct{}, len(unlocked))
	for _, p := range unlocked {
		unlockedSet[p] = struct{}{}
	}

	out := make([]ProviderStatus, 0, len(providers))

	for _, p := range providers {
		metadata, metaErr := c.vault.GetMetadata(ctx, p)
		if metaErr != nil {
			return nil, metaErr
		}

		_, isUnlocked := unlockedSet[p]

		out = append(out, ProviderStatus{Provider: p, IsUnlocked: isUnlocked, Metadata: metadata})
	}

	return out, nil
}

// ChangePassword re-encrypts provider's stored key under newPassword,
// after verifying currentPassword via Unlock and the new password's
// strength and confirmation.
func (c *Coordinator) ChangePassword(ctx context.Context, provider providerid.ID, currentPassword, newPassword, confirmNewPassword string) error {
	if newPassword != confirmNewPassword {
		return apperr.New(apperr.CodePasswordsMismatch, "new password and confirmation do not match", nil)
	}

	if !credcheck.IsAcceptable(newPassword) {
		report := credcheck.ScorePassword(newPassword)
		return apperr.New(apperr.CodeInvalidPassword, "new password does not meet strength requirements", nil).
			WithFailedRequirements(report.FailedRequirements)
	}

	apiKey, err := c.Unlock(ctx, provider, currentPassword)
	if err != nil {
		return err
	}

	if err := c.vault.SaveKey(ctx, provider, apiKey, newPassword); err != nil {
		return err
	}

	return c.cache.CacheKey(ctx, provider, apiKey)
}
