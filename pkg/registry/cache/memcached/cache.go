package memcached

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/fluxcd/ecsdeploy/pkg/image"
	"github.com/fluxcd/ecsdeploy/pkg/registry"
)

const keyPrefix = "ecsdeploy:images:"

// DefaultExpiry is how long a listing is served from the cache before
// it's fetched again.
const DefaultExpiry = 5 * time.Minute

// Client is the part of Memcache the cache uses.
type Client interface {
	Get(key string) ([]byte, time.Time, error)
	Set(key string, refreshDeadline time.Time, value []byte) error
}

var _ Client = &Memcache{}

// Cache is a Registry that remembers image listings. Lookups of a
// single tag, and of repositories, always go to the backend, since a
// release must not act on a stale answer.
type Cache struct {
	registry.Registry
	client Client
	expiry time.Duration
	logger log.Logger
	now    func() time.Time
}

func NewCache(backend registry.Registry, client Client, expiry time.Duration, logger log.Logger) *Cache {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Cache{
		Registry: backend,
		client:   client,
		expiry:   expiry,
		logger:   log.With(logger, "component", "memcached"),
		now:      time.Now,
	}
}

func repositoryKey(repo image.Name) string {
	return keyPrefix + repo.String()
}

func (c *Cache) Images(ctx context.Context, repo image.Name) ([]image.Info, error) {
	key := repositoryKey(repo)
	bytes, deadline, err := c.client.Get(key)
	switch {
	case err == ErrNotCached:
	case err != nil:
		level.Warn(c.logger).Log("key", key, "err", err)
	case c.now().Before(deadline):
		var infos []image.Info
		if err := json.Unmarshal(bytes, &infos); err == nil {
			level.Debug(c.logger).Log("hit", key, "images", len(infos))
			return infos, nil
		}
		level.Warn(c.logger).Log("key", key, "err", "undecodable cache entry")
	}

	infos, err := c.Registry.Images(ctx, repo)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(infos); err == nil {
		if err := c.client.Set(key, c.now().Add(c.expiry), bytes); err != nil {
			level.Warn(c.logger).Log("key", key, "err", err)
		}
	}
	return infos, nil
}
