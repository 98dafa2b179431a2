// Package cache implements the response cache for idempotent reads.
//
// Entries live in Redis when configured and in an in-process TTL map
// otherwise. A failing Redis call degrades to the in-process map instead of
// failing the request. Keys have the form
//
//	<prefix>:<tenant>:<resource>:<upstream path>?<canonical query>
//
// so every entry for one tenant and resource shares the prefix dropped by
// an invalidation.
package cache

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Store is a byte-oriented key/value store with TTLs and prefix deletion.
type Store interface {
	// Get returns the value for key. A missing or expired key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DelPattern deletes every key starting with prefix and returns the count.
	DelPattern(ctx context.Context, prefix string) (int, error)
}

// ResourcePrefix returns the key prefix shared by all entries for one
// tenant and resource. It ends with ":" so "orders" never matches
// "orders-archive".
func ResourcePrefix(prefix, tenant, resource string) string {
	return prefix + ":" + tenant + ":" + resource + ":"
}

// Key returns the cache key for a read of path with query q.
func Key(prefix, tenant, resource, path string, q url.Values) string {
	var b strings.Builder
	b.WriteString(ResourcePrefix(prefix, tenant, resource))
	b.WriteString(path)
	b.WriteByte('?')
	// Encode sorts by key, giving a canonical form.
	b.WriteString(canonicalQuery(q))
	return b.String()
}

func canonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	sorted := make(url.Values, len(q))
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		sorted[k] = append([]string(nil), vs...)
	}
	return sorted.Encode()
}
