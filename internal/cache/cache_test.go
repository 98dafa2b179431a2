package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"admin-bff/internal/config"
)

type recordingNotifier struct {
	prefixes []string
	err      error
}

func (r *recordingNotifier) PublishInvalidation(_ context.Context, prefix string) error {
	r.prefixes = append(r.prefixes, prefix)
	return r.err
}

func testCache(shared Store) *Cache {
	cfg := &config.Config{Cache: config.CacheConfig{
		KeyPrefix:         "bff",
		DefaultTTLSeconds: 60,
		MaxLocalEntries:   100,
	}}
	return New(cfg, shared, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestKey_Canonical(t *testing.T) {
	a := Key("bff", "acme", "orders", "/api/v1/orders", url.Values{"status": {"PLACED"}, "page": {"2"}})
	b := Key("bff", "acme", "orders", "/api/v1/orders", url.Values{"page": {"2"}, "status": {"PLACED"}})
	if a != b {
		t.Errorf("query order changed key: %q vs %q", a, b)
	}
	want := "bff:acme:orders:/api/v1/orders?page=2&status=PLACED"
	if a != want {
		t.Errorf("Key() = %q, want %q", a, want)
	}
	if got := Key("bff", "acme", "orders", "/api/v1/orders", nil); got != "bff:acme:orders:/api/v1/orders?" {
		t.Errorf("Key() without query = %q", got)
	}
}

func TestResourcePrefix(t *testing.T) {
	if got := ResourcePrefix("bff", "acme", "orders"); got != "bff:acme:orders:" {
		t.Errorf("ResourcePrefix() = %q", got)
	}
}

func TestCache_LocalOnly(t *testing.T) {
	c := testCache(nil)
	ctx := context.Background()
	key := c.Key("acme", "orders", "/api/v1/orders", nil)

	if _, ok := c.Get(ctx, "orders", key); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set(ctx, key, Entry{Status: 200, Body: []byte(`{"success":true}`)}, 0)

	e, ok := c.Get(ctx, "orders", key)
	if !ok {
		t.Fatal("Get() after Set() should hit")
	}
	if e.Status != 200 || string(e.Body) != `{"success":true}` {
		t.Errorf("entry = %+v", e)
	}
}

func TestCache_SharedStore(t *testing.T) {
	f := newFakeRedis()
	shared, _ := NewRedisStoreWithClient(f)
	c := testCache(shared)
	ctx := context.Background()
	key := c.Key("acme", "orders", "/api/v1/orders", nil)

	c.Set(ctx, key, Entry{Status: 200, Body: []byte(`{}`)}, 45*time.Second)
	if _, ok := f.data[key]; !ok {
		t.Fatal("entry should be written to the shared store")
	}
	if f.ttls[key] != 45*time.Second {
		t.Errorf("ttl = %v", f.ttls[key])
	}
	if c.local.Len() != 0 {
		t.Error("healthy shared store should not populate the local store")
	}
	if _, ok := c.Get(ctx, "orders", key); !ok {
		t.Error("Get() should hit the shared store")
	}
}

func TestCache_FallsBackWhenSharedFails(t *testing.T) {
	f := newFakeRedis()
	f.err = errors.New("redis down")
	shared, _ := NewRedisStoreWithClient(f)
	c := testCache(shared)
	ctx := context.Background()
	key := c.Key("acme", "orders", "/api/v1/orders", nil)

	c.Set(ctx, key, Entry{Status: 200, Body: []byte(`{}`)}, time.Minute)
	if _, ok := c.Get(ctx, "orders", key); !ok {
		t.Fatal("Get() should hit the local fallback")
	}

	c.Invalidate(ctx, "acme", "orders")
	if _, ok := c.Get(ctx, "orders", key); ok {
		t.Error("Invalidate() should clear the local fallback even when shared fails")
	}
}

func TestCache_Invalidate(t *testing.T) {
	f := newFakeRedis()
	shared, _ := NewRedisStoreWithClient(f)
	c := testCache(shared)
	n := &recordingNotifier{}
	c.SetNotifier(n)
	ctx := context.Background()

	list := c.Key("acme", "orders", "/api/v1/orders", url.Values{"page": {"1"}})
	detail := c.Key("acme", "orders", "/api/v1/orders/o1", nil)
	other := c.Key("globex", "orders", "/api/v1/orders", nil)
	products := c.Key("acme", "products", "/api/v1/products", nil)
	for _, k := range []string{list, detail, other, products} {
		c.Set(ctx, k, Entry{Status: 200}, time.Minute)
	}
	// A stale local copy from an earlier outage must also go.
	_ = c.local.Set(ctx, detail, []byte(`{"status":200}`), time.Minute)

	c.Invalidate(ctx, "acme", "orders")

	for _, k := range []string{list, detail} {
		if _, ok := c.Get(ctx, "orders", k); ok {
			t.Errorf("%q should be invalidated", k)
		}
	}
	for _, k := range []string{other, products} {
		if _, ok := c.Get(ctx, "orders", k); !ok {
			t.Errorf("%q should survive", k)
		}
	}
	if len(n.prefixes) != 1 || n.prefixes[0] != "bff:acme:orders:" {
		t.Errorf("published prefixes = %v", n.prefixes)
	}
}

func TestCache_InvalidateIgnoresNotifierError(t *testing.T) {
	c := testCache(nil)
	c.SetNotifier(&recordingNotifier{err: errors.New("broker down")})
	ctx := context.Background()
	key := c.Key("acme", "orders", "/x", nil)
	c.Set(ctx, key, Entry{Status: 200}, time.Minute)

	c.Invalidate(ctx, "acme", "orders")
	if _, ok := c.Get(ctx, "orders", key); ok {
		t.Error("local invalidation must not depend on the notifier")
	}
}

func TestCache_DropLocal(t *testing.T) {
	f := newFakeRedis()
	shared, _ := NewRedisStoreWithClient(f)
	c := testCache(shared)
	ctx := context.Background()
	key := c.Key("acme", "orders", "/x", nil)
	_ = c.local.Set(ctx, key, []byte(`{"status":200}`), time.Minute)
	f.data[key] = `{"status":200}`

	c.DropLocal("bff:acme:orders:")

	if c.local.Len() != 0 {
		t.Error("DropLocal() should clear the local store")
	}
	if _, ok := f.data[key]; !ok {
		t.Error("DropLocal() must not touch the shared store")
	}
}

func TestResourceOf(t *testing.T) {
	tests := []struct{ in, want string }{
		{"bff:acme:orders:", "orders"},
		{"bff:acme", "unknown"},
	}
	for _, tt := range tests {
		if got := resourceOf(tt.in); got != tt.want {
			t.Errorf("resourceOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
