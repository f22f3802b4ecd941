// Package magic centralizes the numeric and string constants fixed by the
// vault's specification so they are never duplicated or silently drifted
// between packages.
package magic

import "time"

// Crypto envelope parameters (spec.md §4.1). Not caller-configurable.
const (
	AESKeyLenBytes   = 32
	AESIVLenBytes    = 12
	AESTagLenBytes   = 16
	SaltLenBytes     = 32
	PBKDF2Iterations = 800_000
	HKDFHashLenBytes = 32 // SHA-256 output size

	MinEnvelopeLenBytes = SaltLenBytes + AESIVLenBytes + AESTagLenBytes

	DeviceSecretLenBits      = 256
	CompoundPasswordLenBits  = 512
	DeviceBindingInfo        = "device-binding-v2"
	CompoundPasswordInfo     = "compound-password-v2"
	SessionKeyProtectionInfo = "session-key-protection-v1"
)

// Key-vault timing normalization (spec.md §4.4).
const GetKeyMinDuration = 400 * time.Millisecond

// Rate limiter parameters (spec.md §4.5).
const (
	RateLimitMaxAttempts      = 5
	RateLimitWindow           = 15 * time.Minute
	RateLimitInitialLockout   = 30 * time.Second
	RateLimitBackoffMultipler = 2
	RateLimitMaxLockout       = time.Hour
)

// Session settings bounds and defaults (spec.md §4.7).
const (
	SessionExpiryMinMinutes        = 5
	SessionExpiryMaxMinutes        = 360
	SessionExpiryDefaultMinutes    = 30
	InactivityTimeoutMinMinutes    = 5
	InactivityTimeoutMaxMinutes    = 60
	InactivityTimeoutDefaultMin    = 15
	SecurityWarningExpiryThreshold = SessionExpiryMaxMinutes
)

// Password strength thresholds (spec.md §4.10).
const (
	PasswordMinLength  = 12
	PasswordMaxLength  = 128
	PasswordMinClasses = 3

	StrengthWeakMax   = 30
	StrengthFairMax   = 50
	StrengthGoodMax   = 70
	StrengthMaxScore  = 100
	RepeatRunMinimum  = 4
	SequenceRunLength = 4
)

// Durable storage keys (spec.md §6). Exact strings; part of the
// compatibility contract.
const (
	DurableKeyAPIKeyStore      = "secure_api_keys_v2"
	DurableKeyDeviceSalt       = "device_binding_salt"
	DurableKeySessionSettings  = "session_settings_v1"
	CurrentKeyStoreSchemaVersion = 2
)

// Ephemeral storage keys (spec.md §6).
const (
	EphemeralKeyDecryptedCache    = "decrypted_keys_cache"
	EphemeralKeyPersistedSession  = "persisted_session_key"
	EphemeralKeyRateLimitPrefix   = "rate_limit_"
)

// AlarmSessionTimeout is the one-shot, idempotent alarm name for the
// session cache's inactivity timer.
const AlarmSessionTimeout = "session-timeout"
