// Package userrecords defines the core types used by the user records client.
package userrecords

import (
	"time"
)

// User is a person record as stored and returned by a Storage backend.
// JSON tags are included for serialization, used by the cache and the HTTP API.
type User struct {
	// ID is the unique identifier generated by the storage backend on create.
	ID string `json:"id"`
	// Name is the display name. Together with Age it forms a unique compound key.
	Name string `json:"name"`
	// Age is the age in years.
	Age int `json:"age"`
	// Email is the unique email address of the user.
	Email string `json:"email"`
	// IsAdmin marks administrative users.
	IsAdmin bool `json:"is_admin"`
	// Preference is the optional one-to-one preference record.
	// It is only populated when the query asked for it.
	Preference *UserPreference `json:"preference,omitempty"`
	// CreatedAt records the time the user was inserted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt records the last modification time.
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPreference holds the settings of exactly one User.
type UserPreference struct {
	ID           string `json:"id"`
	EmailUpdates bool   `json:"email_updates"`
	// UserID references the owning User. A preference never outlives its user.
	UserID string `json:"user_id"`
}

// CreateUserInput carries the attributes of a user to create.
// When Preference is set the preference record is created in the same call.
type CreateUserInput struct {
	Name       string                 `json:"name" validate:"required,max=255"`
	Age        int                    `json:"age" validate:"gte=0,lte=200"`
	Email      string                 `json:"email" validate:"required,email,max=320"`
	IsAdmin    bool                   `json:"is_admin"`
	Preference *CreatePreferenceInput `json:"preference,omitempty"`
}

// CreatePreferenceInput carries the attributes of a nested preference.
type CreatePreferenceInput struct {
	EmailUpdates bool `json:"email_updates"`
}

// BatchResult reports how many rows a bulk operation touched.
type BatchResult struct {
	Count int64 `json:"count"`
}

// Config holds the internal configuration for a Client instance.
// It is populated by applying functional Options when a new Client is created with New().
type Config struct {
	// storage is the persistence layer implementation (GormStorage, SQLStorage, MemoryStorage).
	storage Storage
	// cache is the optional caching layer for unique lookups.
	cache Cache
	// cacheTTL is how long a cached user stays valid.
	cacheTTL time.Duration
	// logger is the logging interface used by the Client.
	logger Logger
	// encryptor, when set, encrypts cached records.
	encryptor Encryptor
}

// Option defines the signature for a functional option that configures a Client instance.
type Option func(*Config)

// WithStorage sets the Storage implementation for the Client.
// This is a mandatory option.
func WithStorage(s Storage) Option {
	return func(c *Config) {
		c.storage = s
	}
}

// WithCache sets the Cache implementation used for unique user lookups.
// This option is optional.
func WithCache(cache Cache) Option {
	return func(c *Config) {
		c.cache = cache
	}
}

// WithCacheTTL overrides the default lifetime of cached users.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.cacheTTL = ttl
	}
}

// WithLogger sets the Logger implementation for the Client.
// If not set, the default slog logger writing to os.Stderr is used.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}

// WithEncryption encrypts cached user records with the given Encryptor.
func WithEncryption(e Encryptor) Option {
	return func(c *Config) {
		c.encryptor = e
	}
}
