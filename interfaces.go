// Package userrecords defines interfaces for storage, caching, logging and encryption used by the Client.
package userrecords

import (
	"context"
	"time"
)

// Storage defines the methods required for a storage backend.
// Implementations translate constraint failures into ErrAlreadyExists and ErrRelation.
type Storage interface {
	CreateUser(ctx context.Context, in *CreateUserInput) (*User, error)
	FindUniqueUser(ctx context.Context, where UserUniqueWhere, includePreference bool) (*User, error)
	FindManyUsers(ctx context.Context, q *UserQuery) ([]*User, error)
	DeleteManyUsers(ctx context.Context, where *UserWhere) (int64, error)
	FindManyPreferences(ctx context.Context, where *PreferenceWhere) ([]*UserPreference, error)
	DeleteManyPreferences(ctx context.Context, where *PreferenceWhere) (int64, error)
	Close() error
}

// Cache defines the methods required for a caching backend.
// Get returns ErrNotFound on a miss or an expired key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Logger defines the methods required for logging within the client.
// The args should be alternating key-value pairs, similar to slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Encryptor protects cached records at rest.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encrypted string) (string, error)
}
