// Package cache provides a redis read-through cache for job details.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

const (
	keyPrefix         = "jobsearch:details:"
	defaultTTL        = 30 * time.Minute
	connectionTimeout = 5 * time.Second
)

// ErrEmptyAddress is returned when redis is not configured.
var ErrEmptyAddress = eris.New("cache: redis address is required")

// Details caches provider job details keyed by provider and external id.
// A nil *Details is a valid cache that always misses.
type Details struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing client. ttl <= 0 selects the default.
func New(rdb *redis.Client, ttl time.Duration) *Details {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Details{rdb: rdb, ttl: ttl}
}

// Open connects to redis per cfg and verifies the connection.
func Open(ctx context.Context, cfg config.RedisConfig) (*Details, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddress
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: redis ping")
	}
	return New(rdb, time.Duration(cfg.DetailsTTLMinutes)*time.Minute), nil
}

func key(providerID, externalID string) string {
	return keyPrefix + providerID + ":" + externalID
}

// Get returns the cached listing and whether it was found.
func (c *Details) Get(ctx context.Context, providerID, externalID string) (*model.Listing, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, key(providerID, externalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "cache: get %s:%s", providerID, externalID)
	}
	var l model.Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s:%s", providerID, externalID)
	}
	return &l, true, nil
}

// Set stores l under its provider and external id.
func (c *Details) Set(ctx context.Context, l *model.Listing) error {
	if c == nil || l == nil {
		return nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", l.StorageKey())
	}
	if err := c.rdb.Set(ctx, key(l.ProviderID, l.ExternalID), raw, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: set %s", l.StorageKey())
	}
	return nil
}

// Invalidate removes one cached listing.
func (c *Details) Invalidate(ctx context.Context, providerID, externalID string) error {
	if c == nil {
		return nil
	}
	return eris.Wrapf(c.rdb.Del(ctx, key(providerID, externalID)).Err(), "cache: delete %s:%s", providerID, externalID)
}

// Close releases the redis client.
func (c *Details) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
