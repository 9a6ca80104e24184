// Package device implements the connection handler's credential check: a
// directory of registered (device_id, token) pairs, plus the symmetric secret
// encryption used to store per-device provider API keys at rest.
package device

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/bcrypt"
)

// HashToken hashes a device token for storage. Never store the plaintext token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken reports whether token matches the stored bcrypt hash.
func VerifyToken(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// HashPassword and VerifyPassword use the same bcrypt primitive for the
// account layer that sits above this gateway's device layer.
func HashPassword(password string) (string, error) {
	return HashToken(password)
}

func VerifyPassword(hash, password string) bool {
	return VerifyToken(hash, password)
}

// secretCipher derives an AES-256-GCM AEAD from a configured secret key.
// The retrieved example pack has no Go port of Python's Fernet; AES-GCM via
// the standard library is used as the closest authenticated-encryption
// primitive available without fabricating a dependency (see DESIGN.md).
func secretCipher(secretKey string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(secretKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptSecret encrypts plaintext with a key derived from secretKey. Empty
// input maps to empty output.
func EncryptSecret(secretKey, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := secretCipher(secretKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return string(ciphertext), nil
}

// DecryptSecret reverses EncryptSecret. Empty input maps to empty output.
func DecryptSecret(secretKey, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	gcm, err := secretCipher(secretKey)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("secret ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, []byte(nonce), []byte(sealed), nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
