// Package cache provides the caching backends used for unique user lookups:
// an in-memory cache and a Redis cache. Values are opaque bytes.
package cache

import (
	"github.com/CreativeUnicorns/userrecords"
)

// Cache is the caching backend contract of the client.
type Cache = userrecords.Cache
