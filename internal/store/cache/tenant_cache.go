// Package cache implements the tenant lookup cache using dgraph-io/ristretto
// as an in-process L1 cache.
package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/opentrusty/tenantry/internal/tenant"
)

// TenantCache wraps a ristretto cache of resolved tenants.
type TenantCache struct {
	c *ristretto.Cache[string, *tenant.Tenant]
}

// New creates a ristretto-backed cache holding at most maxEntries tenants.
func New(maxEntries int64) (*TenantCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *tenant.Tenant]{
		NumCounters: maxEntries * 10, // ~10x expected items
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &TenantCache{c: c}, nil
}

// Get returns a copy of the cached tenant.
func (c *TenantCache) Get(_ context.Context, key string) (*tenant.Tenant, bool) {
	t, found := c.c.Get(key)
	if !found || t == nil {
		return nil, false
	}
	return t.Clone(), true
}

// Set stores a copy of t with the given TTL. A zero TTL never expires.
func (c *TenantCache) Set(_ context.Context, key string, t *tenant.Tenant, ttl time.Duration) {
	c.c.SetWithTTL(key, t.Clone(), 1, ttl)
}

// Delete removes a cached entry.
func (c *TenantCache) Delete(_ context.Context, key string) {
	c.c.Del(key)
}

// Wait blocks until buffered writes are applied.
func (c *TenantCache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *TenantCache) Close() {
	c.c.Close()
}
