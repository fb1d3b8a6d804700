// Package vault provides symmetric encryption for provider API secrets at rest.
// Secrets are sealed with AES-256-GCM under a key derived once from a
// configured passphrase; the same key serves every connection in the process.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrPassphraseRequired is returned when the vault passphrase is empty.
var ErrPassphraseRequired = errors.New("vault: passphrase is required")

// envelopeDelimiter joins the base64 segments of a sealed secret.
const envelopeDelimiter = "."

// Vault encrypts and decrypts secrets with a process-wide symmetric key.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault whose key is the SHA-256 digest of the passphrase.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns the
// envelope "base64(nonce).base64(tag).base64(ciphertext)".
// An empty plaintext encrypts to an empty envelope; it represents
// "no secret configured".
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the authentication tag to the ciphertext; the envelope
	// keeps them as separate segments.
	tagStart := len(sealed) - v.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	parts := []string{
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}
	return strings.Join(parts, envelopeDelimiter), nil
}

// Decrypt opens an envelope produced by Encrypt. Malformed input (wrong
// segment count, bad base64, tag mismatch) yields an empty string rather
// than an error; callers must treat an empty secret as unusable
// credentials and fail the enclosing operation.
func (v *Vault) Decrypt(envelope string) string {
	if envelope == "" {
		return ""
	}

	parts := strings.Split(envelope, envelopeDelimiter)
	if len(parts) != 3 {
		return ""
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return ""
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return ""
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}
