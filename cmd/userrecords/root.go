package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/CreativeUnicorns/userrecords"
	"github.com/CreativeUnicorns/userrecords/cache"
	"github.com/CreativeUnicorns/userrecords/config"
	"github.com/CreativeUnicorns/userrecords/storage"
)

// app is shared by all commands once the configuration is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	logger     userrecords.LevelLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "userrecords",
		Short: "Create, query and delete users with their preferences",
		Long: `Runs a walkthrough against the configured storage backend, or serves
the records over HTTP. Settings come from the config file, a .env file and
USERRECORDS_ environment variables, e.g. USERRECORDS_STORAGE_BACKEND=postgres.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a config file (yaml, json or toml)")

	tourCmd := newTourCmd(a)
	rootCmd.RunE = tourCmd.RunE
	rootCmd.Flags().AddFlagSet(tourCmd.Flags())

	rootCmd.AddCommand(tourCmd)
	rootCmd.AddCommand(newServeCmd(a))

	return rootCmd
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(config.DefaultViper(), a.configPath)
	if err != nil {
		return err
	}

	level, err := userrecords.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	logger := userrecords.NewZerologLogger(zl)
	logger.SetLevel(level)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// newClient wires the storage, cache and encryption selected in the configuration.
func (a *app) newClient() (*userrecords.Client, error) {
	store, err := newStorage(a.cfg.Storage)
	if err != nil {
		return nil, err
	}

	opts := []userrecords.Option{
		userrecords.WithStorage(store),
		userrecords.WithLogger(a.logger),
		userrecords.WithCacheTTL(a.cfg.Cache.TTL),
	}

	c, err := newCache(a.cfg.Cache)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if c != nil {
		opts = append(opts, userrecords.WithCache(c))
	}

	if key := a.cfg.Cache.EncryptionKey; key != "" {
		enc, err := userrecords.NewEncryptionAdapterWithKey([]byte(key))
		if err != nil {
			_ = store.Close()
			if c != nil {
				_ = c.Close()
			}
			return nil, fmt.Errorf("cache encryption: %w", err)
		}
		opts = append(opts, userrecords.WithEncryption(enc))
	}

	a.logger.Debug("client configured",
		"storage", a.cfg.Storage.Backend, "orm", a.cfg.Storage.ORM, "cache", a.cfg.Cache.Backend)

	return userrecords.New(opts...)
}

func newStorage(cfg config.Storage) (userrecords.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		if cfg.ORM {
			return storage.NewGormSQLiteStorage(cfg.SQLitePath)
		}
		return storage.NewSQLiteStorage(cfg.SQLitePath)
	case "postgres":
		if cfg.ORM {
			return storage.NewGormPostgresStorage(cfg.PostgresDSN)
		}
		return storage.NewPostgresStorage(cfg.PostgresDSN)
	}
	return nil, fmt.Errorf("%w: unknown storage backend %q", userrecords.ErrInvalidInput, cfg.Backend)
}

func newCache(cfg config.Cache) (userrecords.Cache, error) {
	switch cfg.Backend {
	case "none", "":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	return nil, fmt.Errorf("%w: unknown cache backend %q", userrecords.ErrInvalidInput, cfg.Backend)
}
