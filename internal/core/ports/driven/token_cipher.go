package driven

// TokenCipher encrypts provider access tokens before they reach the
// database and decrypts them on the way out.
type TokenCipher interface {
	// Encrypt returns an opaque versioned blob for the plaintext token
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt
	Decrypt(ciphertext string) (string, error)
}
