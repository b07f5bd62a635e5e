package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters
	pbkdf2Iterations = 100000
	pbkdf2KeyLen     = 32 // AES-256
	saltSize         = 32

	// AES-GCM nonce size
	nonceSize = 12
)

// ErrWrongPassword is returned when a secret does not decrypt
var ErrWrongPassword = errors.New("wrong master password")

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptSecret encrypts a private key or password with AES-256-GCM under a
// PBKDF2 key derived from password. It returns nonce+ciphertext and the salt.
func EncryptSecret(plaintext []byte, password string) (encrypted []byte, salt []byte, err error) {
	if len(plaintext) == 0 {
		return nil, nil, fmt.Errorf("secret cannot be empty")
	}
	if password == "" {
		return nil, nil, fmt.Errorf("password cannot be empty")
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Format: nonce + ciphertext (GCM appends auth tag automatically)
	return gcm.Seal(nonce, nonce, plaintext, nil), salt, nil
}

// DecryptSecret reverses EncryptSecret
func DecryptSecret(encrypted []byte, salt []byte, password string) ([]byte, error) {
	if len(encrypted) == 0 {
		return nil, fmt.Errorf("encrypted data cannot be empty")
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("invalid salt size: expected %d, got %d", saltSize, len(salt))
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if len(encrypted) < nonceSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, encrypted[:nonceSize], encrypted[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", ErrWrongPassword)
	}
	return plaintext, nil
}
