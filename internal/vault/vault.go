// Package vault provides envelope encryption for secrets at rest.
//
// Every Encrypt call derives a fresh AES-256 key from the process master
// secret via PBKDF2 with a random per-record salt, so no two stored
// secrets ever share a derived key and identical plaintexts never produce
// comparable ciphertexts.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/crosspost/crosspost-backend/internal/domain"
)

const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32
	iterations = 100_000
)

var (
	// ErrIntegrity means the authentication tag did not verify: the blob
	// was tampered with or encrypted under a different master secret.
	ErrIntegrity = errors.New("vault: ciphertext integrity check failed")

	// ErrMalformed means the blob is not valid base64 or too short to
	// contain salt, IV and tag.
	ErrMalformed = errors.New("vault: malformed ciphertext blob")
)

// Vault encrypts and decrypts secret strings with AES-256-GCM under
// per-record derived keys. The master secret is fixed at construction
// and never re-read.
type Vault struct {
	masterSecret []byte
}

// New creates a Vault. An empty master secret is a fatal configuration
// error: the vault must never silently operate with a default key.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("vault: master secret is empty: %w", domain.ErrConfiguration)
	}
	return &Vault{masterSecret: []byte(masterSecret)}, nil
}

// Encrypt seals plaintext into an opaque base64 blob laid out as
// salt(64) ‖ iv(16) ‖ tag(16) ‖ ciphertext. Salt and IV are freshly
// random on every call.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generate salt: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: generate iv: %w", err)
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the stored layout keeps
	// the tag before it, matching fixed-width prefix parsing on decrypt.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, saltLength+ivLength+tagLength+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Returns ErrMalformed for
// blobs that cannot be parsed and ErrIntegrity when the authentication
// tag does not verify.
func (v *Vault) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(blob) < saltLength+ivLength+tagLength {
		return "", fmt.Errorf("%w: %d bytes", ErrMalformed, len(blob))
	}

	salt := blob[:saltLength]
	iv := blob[saltLength : saltLength+ivLength]
	tag := blob[saltLength+ivLength : saltLength+ivLength+tagLength]
	ciphertext := blob[saltLength+ivLength+tagLength:]

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}

	return string(plaintext), nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.masterSecret, salt, iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("vault: create gcm: %w", err)
	}
	return aead, nil
}
