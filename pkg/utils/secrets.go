package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var (
	// ErrInvalidCiphertext indicates the sealed value is malformed or too short
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrEmptyKey indicates the key is empty
	ErrEmptyKey = errors.New("encryption key cannot be empty")
	// ErrInvalidKeyLength indicates the key is not 32 bytes
	ErrInvalidKeyLength = errors.New("encryption key must be 32 bytes for AES-256")
)

func newGCM(key string) (cipher.AEAD, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SealSecret encrypts secret with AES-256-GCM and returns base64 of nonce||ciphertext.
// Empty input seals to empty output.
func SealSecret(secret, key string) (string, error) {
	if secret == "" {
		return "", nil
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(secret), nil)), nil
}

// OpenSecret reverses SealSecret.
func OpenSecret(sealed, key string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}

	n := gcm.NonceSize()
	if len(raw) < n {
		return "", ErrInvalidCiphertext
	}

	plain, err := gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
