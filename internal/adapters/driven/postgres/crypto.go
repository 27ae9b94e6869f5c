package postgres

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

const (
	// tokenBlobVersion is the version byte for the encrypted blob format.
	// This allows future format changes while maintaining backward compatibility.
	tokenBlobVersion = 0x01

	// keySize is the required key size for ChaCha20-Poly1305
	keySize = chacha20poly1305.KeySize
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported token blob version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("failed to decrypt token blob")
)

// Verify interface compliance
var _ driven.TokenCipher = (*TokenCipher)(nil)

// TokenCipher encrypts provider access tokens with ChaCha20-Poly1305
// before they are written to the database.
// The encrypted format is: version(1) || nonce(12) || ciphertext(N),
// base64-encoded for storage in a TEXT column.
type TokenCipher struct {
	key []byte
}

// NewTokenCipher creates a new cipher with the given 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	return &TokenCipher{key: key}, nil
}

// Encrypt encrypts a token to an opaque base64 blob.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Build blob: version || nonce || ciphertext
	blob := make([]byte, 1+len(nonce)+len(ciphertext))
	blob[0] = tokenBlobVersion
	copy(blob[1:1+len(nonce)], nonce)
	copy(blob[1+len(nonce):], ciphertext)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt.
func (c *TokenCipher) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode token blob: %w", err)
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	minSize := 1 + aead.NonceSize() + aead.Overhead()
	if len(blob) < minSize {
		return "", ErrInvalidBlobSize
	}

	if blob[0] != tokenBlobVersion {
		return "", fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	nonce := blob[1 : 1+aead.NonceSize()]
	ciphertext := blob[1+aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
