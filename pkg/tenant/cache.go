package tenant

import (
	"sync"
	"time"

	"github.com/hornet-sec/hornet/pkg/models"
)

// DefaultCacheTTL is the bounded TTL for key-hash -> identity entries
// (spec §4.1: "bounded TTL (≈5 minutes)").
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	identity  models.TenantIdentity
	expiresAt time.Time
}

// cache is a key-hash -> TenantIdentity lookup cache, avoiding a DB
// round-trip on every request. Shaped after pkg/session's Manager: a
// plain map guarded by a single RWMutex, with lazy expiry checked on
// read rather than a background sweep goroutine.
type cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newCache(ttl time.Duration) *cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *cache) get(keyHash string) (models.TenantIdentity, bool) {
	c.mu.RLock()
	entry, ok := c.entries[keyHash]
	c.mu.RUnlock()
	if !ok {
		return models.TenantIdentity{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, keyHash)
		c.mu.Unlock()
		return models.TenantIdentity{}, false
	}
	return entry.identity, true
}

func (c *cache) set(keyHash string, identity models.TenantIdentity) {
	c.mu.Lock()
	c.entries[keyHash] = cacheEntry{identity: identity, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// invalidate removes a single entry, used when a key is deactivated
// mid-TTL (e.g. by a tenant-disable admin action).
func (c *cache) invalidate(keyHash string) {
	c.mu.Lock()
	delete(c.entries, keyHash)
	c.mu.Unlock()
}
