/*
vault.go - Password hashing and payload encryption

PURPOSE:
  All key material handling in one place. Two independent uses of PBKDF2:

    1. Password verification. HashPassword produces a self-describing
       record "pbkdf2$<iters>$<b64 salt>$<b64 dk>"; VerifyPassword parses
       it and compares in constant time. The verifier is safe to store.

    2. Payload encryption. DeriveKey turns a password plus a per-user salt
       into a 32-byte AES key; Seal/Open apply AES-256-GCM with a random
       nonce prefixed to the ciphertext. The derived key lives only in the
       session, never in a store.

  The two uses take DIFFERENT salts so the stored verifier gives no head
  start on the encryption key.
*/
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor for new users. Existing
	// records carry their own iteration count, so this can be raised
	// without breaking old accounts.
	DefaultIterations = 200_000

	SaltSize = 16
	KeySize  = 32
)

var (
	ErrCiphertextTooShort = errors.New("vault: ciphertext too short")
	ErrBadPasswordRecord  = errors.New("vault: malformed password record")
)

// =============================================================================
// KEY DERIVATION
// =============================================================================

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches a password into an AES-256 key.
func DeriveKey(password string, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
}

// =============================================================================
// SEALING
// =============================================================================

// Seal encrypts plaintext under key with AES-256-GCM. The nonce is random
// and prefixed to the returned ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a Seal output. Any tampering or a wrong key fails
// authentication and returns an error.
func Open(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: open payload: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	return gcm, nil
}

// =============================================================================
// PASSWORD RECORDS
// =============================================================================

// HashPassword returns a storable verifier for the password.
func HashPassword(password string) (string, error) {
	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	dk := pbkdf2.Key([]byte(password), salt, DefaultIterations, KeySize, sha256.New)
	return fmt.Sprintf("pbkdf2$%d$%s$%s",
		DefaultIterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(dk)), nil
}

// VerifyPassword checks a password against a HashPassword record.
func VerifyPassword(record, password string) bool {
	parts := strings.Split(record, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2" {
		return false
	}
	iters, err := strconv.Atoi(parts[1])
	if err != nil || iters <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iters, len(want), sha256.New)
	return hmac.Equal(got, want)
}
