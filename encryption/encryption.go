// Package encryption provides AES-256-GCM encryption for user records kept outside the primary store,
// such as cached users. Key material is read from the environment or passed in explicitly.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// MinKeyLength is the minimum length of the key material in bytes.
	MinKeyLength = 32
	// EnvKeyName is the environment variable holding the key material.
	EnvKeyName = "USERRECORDS_CACHE_ENCRYPTION_KEY"
)

var (
	ErrInvalidKeyLength  = errors.New("encryption key must be at least 32 bytes")
	ErrKeyNotFound       = errors.New("encryption key not found in environment variable " + EnvKeyName)
	ErrEncryptionFailed  = errors.New("encryption operation failed")
	ErrDecryptionFailed  = errors.New("decryption operation failed")
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short or malformed")
)

// Manager encrypts and decrypts strings with a key derived from the key material.
type Manager struct {
	key []byte
}

// NewManager creates a Manager from the key material in EnvKeyName.
func NewManager() (*Manager, error) {
	keyStr := os.Getenv(EnvKeyName)
	if keyStr == "" {
		return nil, ErrKeyNotFound
	}
	return NewManagerWithKey([]byte(keyStr))
}

// NewManagerWithKey creates a Manager from explicit key material.
// The AES key is the SHA-256 digest of the material, so any length above the minimum works.
func NewManagerWithKey(material []byte) (*Manager, error) {
	if len(material) < MinKeyLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrInvalidKeyLength, len(material), MinKeyLength)
	}

	key := sha256.Sum256(material)
	return &Manager{key: key[:]}, nil
}

// Encrypt returns the base64 encoding of nonce||ciphertext. The empty string encrypts to itself.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aesGCM, err := m.gcm()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (m *Manager) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecryptionFailed, err)
	}

	aesGCM, err := m.gcm()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decrypt: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

func (m *Manager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// ValidateKey checks the key material in EnvKeyName without building a Manager.
// Call it at startup to fail fast.
func ValidateKey() error {
	keyStr := os.Getenv(EnvKeyName)
	if keyStr == "" {
		return ErrKeyNotFound
	}
	if len(keyStr) < MinKeyLength {
		return fmt.Errorf("%w: got %d bytes, need at least %d", ErrInvalidKeyLength, len(keyStr), MinKeyLength)
	}
	return nil
}
