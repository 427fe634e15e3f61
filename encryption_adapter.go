package userrecords

import (
	"github.com/CreativeUnicorns/userrecords/encryption"
)

// EncryptionAdapter encrypts the JSON of cached users with an encryption.Manager.
type EncryptionAdapter struct {
	manager *encryption.Manager
}

// NewEncryptionAdapter reads the key material from encryption.EnvKeyName.
func NewEncryptionAdapter() (*EncryptionAdapter, error) {
	return newEncryptionAdapter(encryption.NewManager())
}

// NewEncryptionAdapterWithKey uses explicit key material, e.g. cache.encryption_key from the config.
func NewEncryptionAdapterWithKey(key []byte) (*EncryptionAdapter, error) {
	return newEncryptionAdapter(encryption.NewManagerWithKey(key))
}

func newEncryptionAdapter(m *encryption.Manager, err error) (*EncryptionAdapter, error) {
	if err != nil {
		return nil, err
	}
	return &EncryptionAdapter{manager: m}, nil
}

// Encrypt seals a serialized user.
func (e *EncryptionAdapter) Encrypt(plaintext string) (string, error) { return e.manager.Encrypt(plaintext) }

// Decrypt opens a value produced by Encrypt.
func (e *EncryptionAdapter) Decrypt(encrypted string) (string, error) { return e.manager.Decrypt(encrypted) }
