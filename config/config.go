// Package config loads the settings of the userrecords command from defaults,
// an optional config file, a .env file and USERRECORDS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables, e.g. USERRECORDS_STORAGE_BACKEND.
const EnvPrefix = "USERRECORDS"

var errConfigLoadFailed = errors.New("loading configuration failed")

// Config is the configuration of the command. It is intended to be mapped by viper.
type Config struct {
	Environment string `mapstructure:"environment" validate:"oneof=local test dev prod"`
	LogLevel    string `mapstructure:"log_level"   validate:"oneof=debug info warn error"`

	Storage Storage `mapstructure:"storage"`
	Cache   Cache   `mapstructure:"cache"`
	HTTP    HTTP    `mapstructure:"http"`
	Tour    Tour    `mapstructure:"tour"`
}

type (
	Storage struct {
		Backend string `mapstructure:"backend" validate:"oneof=memory sqlite postgres"`
		// ORM selects the gorm backend instead of the query-builder backend.
		ORM         bool   `mapstructure:"orm"`
		SQLitePath  string `mapstructure:"sqlite_path"  validate:"required_if=Backend sqlite"`
		PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=Backend postgres"`
	}

	Cache struct {
		Backend       string        `mapstructure:"backend"        validate:"oneof=none memory redis"`
		RedisAddr     string        `mapstructure:"redis_addr"     validate:"required_if=Backend redis"`
		RedisPassword string        `mapstructure:"redis_password"`
		RedisDB       int           `mapstructure:"redis_db"       validate:"gte=0"`
		TTL           time.Duration `mapstructure:"ttl"            validate:"gte=0"`
		// EncryptionKey enables encryption of cached records when set.
		EncryptionKey string `mapstructure:"encryption_key" validate:"omitempty,min=32"`
	}

	HTTP struct {
		ListenAddress string `mapstructure:"listen_address" validate:"required"`
	}

	Tour struct {
		Name         string `mapstructure:"name"`
		Age          int    `mapstructure:"age"`
		Email        string `mapstructure:"email"`
		IsAdmin      bool   `mapstructure:"is_admin"`
		EmailUpdates bool   `mapstructure:"email_updates"`
		// Queries adds the query examples to the walkthrough.
		Queries bool `mapstructure:"queries"`
	}
)

// DefaultViper returns a new viper instance with all default values
// from Config set and environment variables bound.
func DefaultViper() *viper.Viper {
	vip := viper.New()

	vip.SetDefault("environment", "local")
	vip.SetDefault("log_level", "info")

	vip.SetDefault("storage.backend", "sqlite")
	vip.SetDefault("storage.orm", true)
	vip.SetDefault("storage.sqlite_path", "userrecords.db")
	vip.SetDefault("storage.postgres_dsn", "")

	vip.SetDefault("cache.backend", "none")
	vip.SetDefault("cache.redis_addr", "localhost:6379")
	vip.SetDefault("cache.redis_password", "")
	vip.SetDefault("cache.redis_db", 0)
	vip.SetDefault("cache.ttl", 10*time.Minute)
	vip.SetDefault("cache.encryption_key", "")

	vip.SetDefault("http.listen_address", ":8080")

	vip.SetDefault("tour.name", "Eugene")
	vip.SetDefault("tour.age", 4)
	vip.SetDefault("tour.email", "asdsa@example.com")
	vip.SetDefault("tour.is_admin", true)
	vip.SetDefault("tour.email_updates", true)
	vip.SetDefault("tour.queries", false)

	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	return vip
}

// Load reads a .env file from the working directory if present, then the
// config file at path (optional, any format viper supports), and decodes and
// validates the result. Environment variables win over the file.
func Load(vip *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: could not read .env: %v", errConfigLoadFailed, err)
	}

	if path != "" {
		vip.SetConfigFile(path)
		if err := vip.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: could not read config file: %v", errConfigLoadFailed, err)
		}
	}

	cfg := &Config{}
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: could not decode configuration into struct: %v", errConfigLoadFailed, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the config against its validate tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errConfigLoadFailed, err)
	}
	return nil
}

// IsLoadError reports whether err came from Load or Validate.
func IsLoadError(err error) bool {
	return errors.Is(err, errConfigLoadFailed)
}
