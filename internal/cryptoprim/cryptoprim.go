// Package cryptoprim implements the vault's cryptographic core: AES-256-GCM
// authenticated encryption under a self-describing envelope,
// PBKDF2-HMAC-SHA256 password-based key derivation, HKDF-SHA256 for
// deterministic sub-key derivation, and CSPRNG helpers.
//
// Parameters are fixed, not caller-configurable (spec.md §4.1): AES-GCM
// with 256-bit keys, 96-bit IVs, 128-bit tags, 256-bit salts, and PBKDF2
// at 800,000 iterations. The envelope layout is part of the wire
// contract (spec.md §6) and must not change without a schema version
// bump.
package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"secvault/internal/apperr"
	"secvault/internal/magic"
)

// Envelope is base64(salt ‖ IV ‖ ciphertext‖tag). It is a distinct type
// so a caller cannot accidentally pass plaintext where ciphertext is
// expected.
type Envelope string

// deriveKey runs PBKDF2-HMAC-SHA256 over password and salt to produce an
// AES-256 key.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, magic.PBKDF2Iterations, magic.AESKeyLenBytes, sha256.New)
}

// Encrypt seals plaintext under password, generating a fresh salt and IV
// on every call (testable property: two calls never produce the same
// envelope for the same input).
func Encrypt(plaintext []byte, password string) (Envelope, error) {
	salt := make([]byte, magic.SaltLenBytes)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", apperr.New(apperr.CodeEncryptionFailed, "failed to generate salt", err)
	}

	return sealEnvelope(plaintext, deriveKey(password, salt), salt)
}

// EncryptWithKey seals plaintext directly under a pre-derived 32-byte
// key (e.g. the session key, or a session-key wrapping key), bypassing
// PBKDF2. The envelope still carries a fresh random salt field for
// layout uniformity with password-based envelopes, even though it plays
// no role in key derivation on this path; DecryptWithKey ignores it.
func EncryptWithKey(plaintext []byte, key []byte) (Envelope, error) {
	salt := make([]byte, magic.SaltLenBytes)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", apperr.New(apperr.CodeEncryptionFailed, "failed to generate salt", err)
	}

	return sealEnvelope(plaintext, key, salt)
}

func sealEnvelope(plaintext, key, salt []byte) (Envelope, error) {
	iv := make([]byte, magic.AESIVLenBytes)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", apperr.New(apperr.CodeEncryptionFailed, "failed to generate IV", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperr.New(apperr.CodeEncryptionFailed, "failed to initialize cipher", err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, magic.AESTagLenBytes)
	if err != nil {
		return "", apperr.New(apperr.CodeEncryptionFailed, "failed to initialize AEAD", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)

	raw := make([]byte, 0, len(salt)+len(iv)+len(sealed))
	raw = append(raw, salt...)
	raw = append(raw, iv...)
	raw = append(raw, sealed...)

	return Envelope(base64.StdEncoding.EncodeToString(raw)), nil
}

// Decrypt opens env under password. Every failure path returns the same
// opaque CodeDecryptionFailed kind regardless of whether the cause was a
// MAC mismatch (wrong password) or structural corruption, except for an
// envelope shorter than the minimum possible length, which fails fast
// with CodeInvalidData before any key derivation is attempted.
func Decrypt(env Envelope, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(env))
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidData, "envelope is not valid base64", nil)
	}

	if len(raw) < magic.MinEnvelopeLenBytes {
		return nil, apperr.New(apperr.CodeInvalidData, "envelope shorter than salt+IV+tag", nil)
	}

	salt := raw[:magic.SaltLenBytes]
	iv := raw[magic.SaltLenBytes : magic.SaltLenBytes+magic.AESIVLenBytes]
	ciphertext := raw[magic.SaltLenBytes+magic.AESIVLenBytes:]

	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.New(apperr.CodeDecryptionFailed, "decryption failed", nil)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, magic.AESTagLenBytes)
	if err != nil {
		return nil, apperr.New(apperr.CodeDecryptionFailed, "decryption failed", nil)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		// Deliberately coarse: do not reveal whether the tag mismatched
		// (wrong password) or the ciphertext was merely truncated.
		return nil, apperr.New(apperr.CodeDecryptionFailed, "decryption failed", nil)
	}

	return plaintext, nil
}

// DecryptWithKey opens env using key directly, without any PBKDF2 step.
// The salt field embedded in env is present only for layout symmetry
// with password-based envelopes and is skipped over, not used.
func DecryptWithKey(env Envelope, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(env))
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidData, "envelope is not valid base64", nil)
	}

	if len(raw) < magic.MinEnvelopeLenBytes {
		return nil, apperr.New(apperr.CodeInvalidData, "envelope shorter than salt+IV+tag", nil)
	}

	iv := raw[magic.SaltLenBytes : magic.SaltLenBytes+magic.AESIVLenBytes]
	ciphertext := raw[magic.SaltLenBytes+magic.AESIVLenBytes:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.New(apperr.CodeDecryptionFailed, "decryption failed", nil)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, magic.AESTagLenBytes)
	if err != nil {
		return nil, apperr.New(apperr.CodeDecryptionFailed, "decryption failed", nil)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, apperr.New(apperr.CodeDecryptionFailed, "decryption failed", nil)
	}

	return plaintext, nil
}

// DeriveHKDF runs HKDF-Extract-then-Expand with SHA-256 over input,
// salted with salt and bound to info, returning lengthBits/8 bytes
// base64-encoded. Deterministic in all four inputs.
func DeriveHKDF(input, salt []byte, info string, lengthBits int) (string, error) {
	if lengthBits <= 0 || lengthBits%8 != 0 {
		return "", apperr.New(apperr.CodeKeyDerivationFailed, "lengthBits must be a positive multiple of 8", nil)
	}

	lengthBytes := lengthBits / 8

	reader := hkdf.New(sha256.New, input, salt, []byte(info))

	out := make([]byte, lengthBytes)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", apperr.New(apperr.CodeKeyDerivationFailed, "HKDF expand failed", err)
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// DeriveHKDFBytes is DeriveHKDF without the base64 encoding step, used
// where the caller needs raw key material (e.g. feeding AES directly).
func DeriveHKDFBytes(input, salt []byte, info string, lengthBits int) ([]byte, error) {
	encoded, err := DeriveHKDF(input, salt, info, lengthBits)
	if err != nil {
		return nil, err
	}

	return base64.StdEncoding.DecodeString(encoded)
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("cryptoprim: random bytes: %w", err)
	}

	return buf, nil
}

// RandomHex returns n random bytes, hex-encoded.
func RandomHex(n int) (string, error) {
	buf, err := RandomBytes(n)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

// Zero overwrites buf with zero bytes. Best-effort hygiene for
// compound passwords, session keys, and plaintext API keys held in byte
// slices — the Go runtime offers no guarantee against compiler
// reordering or GC-copied backing arrays, but this still shrinks the
// window a secret is reachable in memory after use.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
