// client.go
package userrecords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	userCachePrefix = "user:"
	defaultCacheTTL = 10 * time.Minute
)

// Client is the entry point for reading and writing user records.
// Every call is a pass-through to the configured Storage, with input
// validation in front and an optional read-through cache for unique lookups.
type Client struct {
	config   *Config
	validate *validator.Validate
	// cacheGen changes on every invalidation. A lookup only caches what it
	// read if no invalidation happened since it started.
	cacheGen atomic.Uint64
}

// New creates a Client. WithStorage is required.
func New(opts ...Option) (*Client, error) {
	cfg := &Config{
		logger:   NewDefaultLogger(),
		cacheTTL: defaultCacheTTL,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.storage == nil {
		return nil, fmt.Errorf("%w: no storage configured", ErrStorageUnavailable)
	}

	return &Client{
		config:   cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// CreateUser validates in and creates the user, together with its preference when one is given.
func (c *Client) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if err := c.validate.StructCtx(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	start := time.Now()
	user, err := c.config.storage.CreateUser(ctx, &in)
	c.logQuery("create user", start, err)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// FindUniqueUser returns the user matching the unique key, including its preference.
// It returns ErrNotFound if there is none.
func (c *Client) FindUniqueUser(ctx context.Context, where UserUniqueWhere) (*User, error) {
	if err := where.Validate(); err != nil {
		return nil, err
	}

	key := where.cacheKey()
	if c.config.cache != nil {
		if user, err := c.getFromCache(ctx, key); err == nil {
			return user, nil
		}
	}

	gen := c.cacheGen.Load()
	start := time.Now()
	user, err := c.config.storage.FindUniqueUser(ctx, where, true)
	c.logQuery("find unique user", start, err)
	if err != nil {
		return nil, err
	}

	if c.config.cache != nil {
		c.cacheIfCurrent(ctx, gen, key, user)
	}

	return user, nil
}

// FindFirstUser returns the first user matching q, or ErrNotFound.
func (c *Client) FindFirstUser(ctx context.Context, q UserQuery) (*User, error) {
	q.Take = 1
	users, err := c.FindManyUsers(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return users[0], nil
}

// FindManyUsers lists users. The zero UserQuery lists every user.
func (c *Client) FindManyUsers(ctx context.Context, q UserQuery) ([]*User, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	users, err := c.config.storage.FindManyUsers(ctx, &q)
	c.logQuery("find many users", start, err, "count", len(users))
	if err != nil {
		return nil, err
	}

	return users, nil
}

// DeleteManyUsers deletes the users matching where; nil deletes all of them.
// Preferences of deleted users are removed with them.
func (c *Client) DeleteManyUsers(ctx context.Context, where *UserWhere) (BatchResult, error) {
	start := time.Now()
	n, err := c.config.storage.DeleteManyUsers(ctx, where)
	c.logQuery("delete many users", start, err, "count", n)
	if err != nil {
		return BatchResult{}, err
	}

	c.invalidateCache(ctx)
	return BatchResult{Count: n}, nil
}

// FindManyPreferences lists preferences matching where; nil lists all of them.
func (c *Client) FindManyPreferences(ctx context.Context, where *PreferenceWhere) ([]*UserPreference, error) {
	start := time.Now()
	prefs, err := c.config.storage.FindManyPreferences(ctx, where)
	c.logQuery("find many preferences", start, err, "count", len(prefs))
	if err != nil {
		return nil, err
	}

	return prefs, nil
}

// DeleteManyPreferences deletes the preferences matching where; nil deletes all of them.
func (c *Client) DeleteManyPreferences(ctx context.Context, where *PreferenceWhere) (BatchResult, error) {
	start := time.Now()
	n, err := c.config.storage.DeleteManyPreferences(ctx, where)
	c.logQuery("delete many preferences", start, err, "count", n)
	if err != nil {
		return BatchResult{}, err
	}

	c.invalidateCache(ctx)
	return BatchResult{Count: n}, nil
}

// Close releases the storage and cache backends.
func (c *Client) Close() error {
	var errs []error
	if err := c.config.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if c.config.cache != nil {
		if err := c.config.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) logQuery(op string, start time.Time, err error, args ...any) {
	args = append(args, "op", op, "duration", time.Since(start))
	if err != nil {
		c.config.logger.Debug("query failed", append(args, "error", err)...)
		return
	}
	c.config.logger.Debug("query", args...)
}

func (c *Client) getFromCache(ctx context.Context, key string) (*User, error) {
	data, err := c.config.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if c.config.encryptor != nil {
		plain, err := c.config.encryptor.Decrypt(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt cached user: %v", ErrSerialization, err)
		}
		data = []byte(plain)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: decode cached user: %v", ErrSerialization, err)
	}

	return &user, nil
}

func (c *Client) setToCache(ctx context.Context, key string, user *User) {
	data, err := json.Marshal(user)
	if err != nil {
		c.config.logger.Error("Failed to marshal user for cache", "error", err)
		return
	}

	if c.config.encryptor != nil {
		enc, err := c.config.encryptor.Encrypt(string(data))
		if err != nil {
			c.config.logger.Error("Failed to encrypt user for cache", "error", err)
			return
		}
		data = []byte(enc)
	}

	if err := c.config.cache.Set(ctx, key, data, c.config.cacheTTL); err != nil {
		c.config.logger.Error("Failed to cache user", "key", key, "error", err)
	}
}

// cacheIfCurrent stores user unless the cache was invalidated after gen was
// read. An invalidation racing with the write removes the entry again.
func (c *Client) cacheIfCurrent(ctx context.Context, gen uint64, key string, user *User) {
	if c.cacheGen.Load() != gen {
		return
	}
	c.setToCache(ctx, key, user)
	if c.cacheGen.Load() != gen {
		if err := c.config.cache.Delete(ctx, key); err != nil {
			c.config.logger.Error("Failed to drop stale cached user", "key", key, "error", err)
		}
	}
}

func (c *Client) invalidateCache(ctx context.Context) {
	if c.config.cache == nil {
		return
	}
	c.cacheGen.Add(1)
	if err := c.config.cache.DeletePrefix(ctx, userCachePrefix); err != nil {
		c.config.logger.Error("Failed to invalidate cached users", "error", err)
	}
}
