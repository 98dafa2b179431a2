package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"admin-bff/internal/config"
	"admin-bff/internal/metrics"
)

// Entry is a cached backend response.
type Entry struct {
	Status int             `json:"status"`
	Header http.Header     `json:"header,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Notifier announces a local invalidation to other replicas.
type Notifier interface {
	PublishInvalidation(ctx context.Context, prefix string) error
}

// Cache is the response cache used by route handlers. Reads and writes go
// to the shared store and fall back to the local store on error;
// invalidations always apply to both.
type Cache struct {
	shared     Store
	local      *MemoryStore
	keyPrefix  string
	defaultTTL time.Duration
	notifier   Notifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Cache. shared may be nil, in which case only the local
// store is used. The metrics parameter is optional.
func New(cfg *config.Config, shared Store, logger *slog.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		shared:     shared,
		local:      NewMemoryStore(cfg.Cache.MaxLocalEntries),
		keyPrefix:  cfg.Cache.KeyPrefix,
		defaultTTL: time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second,
		logger:     logger.With("component", "cache"),
		metrics:    m,
	}
}

// SetNotifier installs the cross-replica invalidation publisher.
func (c *Cache) SetNotifier(n Notifier) {
	c.notifier = n
}

// DefaultTTL returns the TTL used when a route does not set one.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Key returns the cache key for a tenant-scoped read.
func (c *Cache) Key(tenant, resource, path string, q url.Values) string {
	return Key(c.keyPrefix, tenant, resource, path, q)
}

// Get looks up key and records a hit or miss for resource.
func (c *Cache) Get(ctx context.Context, resource, key string) (Entry, bool) {
	raw, ok := c.get(ctx, key)
	var e Entry
	if ok {
		if err := json.Unmarshal(raw, &e); err != nil {
			c.logger.Warn("dropping undecodable cache entry", "key", key, "err", err)
			ok = false
		}
	}
	c.countLookup(resource, ok)
	return e, ok
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.shared != nil {
		raw, ok, err := c.shared.Get(ctx, key)
		if err == nil {
			return raw, ok
		}
		c.storeError("get", err)
	}
	raw, ok, _ := c.local.Get(ctx, key)
	return raw, ok
}

// Set stores e under key for ttl. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, e Entry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("encode cache entry", "key", key, "err", err)
		return
	}
	if c.shared != nil {
		err := c.shared.Set(ctx, key, raw, ttl)
		if err == nil {
			return
		}
		c.storeError("set", err)
	}
	_ = c.local.Set(ctx, key, raw, ttl)
}

// Invalidate drops every entry for tenant and resource from both stores and
// notifies other replicas. It returns once the local stores are clear.
func (c *Cache) Invalidate(ctx context.Context, tenant, resource string) {
	prefix := ResourcePrefix(c.keyPrefix, tenant, resource)
	c.DelPattern(ctx, prefix)
	if c.metrics != nil {
		c.metrics.CacheInvalidations.WithLabelValues(resource, "local").Inc()
	}
	if c.notifier != nil {
		if err := c.notifier.PublishInvalidation(ctx, prefix); err != nil {
			c.logger.Warn("publish cache invalidation", "prefix", prefix, "err", err)
		}
	}
}

// DelPattern deletes prefix from the shared and local stores.
func (c *Cache) DelPattern(ctx context.Context, prefix string) {
	if c.shared != nil {
		if _, err := c.shared.DelPattern(ctx, prefix); err != nil {
			c.storeError("del_pattern", err)
		}
	}
	_, _ = c.local.DelPattern(ctx, prefix)
}

// DropLocal deletes prefix from the local store only. It handles
// invalidations announced by other replicas.
func (c *Cache) DropLocal(prefix string) {
	n, _ := c.local.DelPattern(context.Background(), prefix)
	if c.metrics != nil {
		c.metrics.CacheInvalidations.WithLabelValues(resourceOf(prefix), "remote").Inc()
	}
	c.logger.Debug("dropped remote invalidation", "prefix", prefix, "keys", n)
}

func (c *Cache) countLookup(resource string, hit bool) {
	if c.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.metrics.CacheRequests.WithLabelValues(resource, result).Inc()
}

func (c *Cache) storeError(op string, err error) {
	c.logger.Warn("shared cache unavailable, using local store", "op", op, "err", err)
	if c.metrics != nil {
		c.metrics.CacheErrors.WithLabelValues(op).Inc()
	}
}

// resourceOf extracts the resource segment from "<prefix>:<tenant>:<resource>:".
func resourceOf(prefix string) string {
	parts := strings.SplitN(prefix, ":", 4)
	if len(parts) < 3 {
		return "unknown"
	}
	return parts[2]
}
