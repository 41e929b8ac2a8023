package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hornet-sec/hornet/pkg/models"
)

// KeyPrefix is the vendor prefix every HORNET API key must carry.
// Credentials lacking it fail fast as malformed rather than reaching
// the database.
const KeyPrefix = "hornet_"

// Store is the subset of the storage layer the resolver needs. It is
// defined here (consumer side) rather than in pkg/storage so this
// package has no dependency on the storage implementation.
type Store interface {
	// LookupAPIKeyByHash returns the APIKey (and owning tenant's active
	// flag) for the given hash, or models.ErrNotFound.
	LookupAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, *models.Tenant, error)

	// TouchAPIKeyLastUsed advances LastUsedAt best-effort; callers
	// ignore its error.
	TouchAPIKeyLastUsed(ctx context.Context, keyID string, at time.Time) error
}

// Resolver turns a raw API key credential into a TenantIdentity,
// caching identities by key hash for DefaultCacheTTL.
type Resolver struct {
	store Store
	cache *cache
}

// NewResolver builds a Resolver backed by store. ttl overrides the
// default cache TTL when non-zero (tests pass a short TTL).
func NewResolver(store Store, ttl time.Duration) *Resolver {
	return &Resolver{store: store, cache: newCache(ttl)}
}

// ExtractCredential pulls the API key out of an HTTP request, checking
// the Authorization bearer header, the X-API-Key header, and the
// api_key query parameter, in that order.
func ExtractCredential(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest, true
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key, true
	}
	return "", false
}

// hashKey returns the stored-comparable hash of a clear-text key. A
// plain SHA-256 is sufficient here: API keys are high-entropy random
// tokens, not user-chosen passwords, so there is no offline-guessing
// surface that would call for a slow KDF.
func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves raw (the clear-text credential) to a
// TenantIdentity, consulting the cache before falling back to store.
func (r *Resolver) Authenticate(ctx context.Context, raw string) (models.TenantIdentity, error) {
	if raw == "" {
		return models.TenantIdentity{}, ErrMissingCredential
	}
	if !strings.HasPrefix(raw, KeyPrefix) {
		return models.TenantIdentity{}, ErrMalformedCredential
	}

	keyHash := hashKey(raw)

	if identity, ok := r.cache.get(keyHash); ok {
		return identity, nil
	}

	apiKey, ten, err := r.store.LookupAPIKeyByHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.TenantIdentity{}, ErrUnknownKey
		}
		return models.TenantIdentity{}, fmt.Errorf("tenant: lookup failed: %w", err)
	}
	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return models.TenantIdentity{}, ErrKeyExpired
	}
	if ten == nil || !ten.IsActive {
		return models.TenantIdentity{}, ErrTenantInactive
	}

	identity := models.TenantIdentity{
		TenantID:         apiKey.TenantID,
		TenantName:       ten.Name,
		KeyID:            apiKey.ID,
		Scopes:           apiKey.Scopes,
		SubscriptionTier: ten.SubscriptionTier,
	}
	r.cache.set(keyHash, identity)

	// Best-effort: a failure here must never fail the request.
	_ = r.store.TouchAPIKeyLastUsed(ctx, apiKey.ID, time.Now())

	return identity, nil
}

// Invalidate drops a cached identity for raw's hash, e.g. after an
// admin deactivates the key mid-TTL.
func (r *Resolver) Invalidate(raw string) {
	r.cache.invalidate(hashKey(raw))
}
