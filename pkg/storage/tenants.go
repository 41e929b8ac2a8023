package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// LookupAPIKeyByHash implements pkg/tenant.Store. It is a cross-tenant
// lookup by construction (the caller does not yet know the tenant),
// so it runs outside any tenant-scoped transaction against the two
// tables that carry no RLS policy.
func (s *Store) LookupAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, *models.Tenant, error) {
	var key models.APIKey
	var ten models.Tenant

	row := s.pool.QueryRow(ctx, `
		SELECT k.id, k.tenant_id, k.key_hash, k.scopes, k.expires_at, k.last_used_at, k.created_at,
		       t.id, t.name, t.is_active, t.subscription_tier, t.created_at
		FROM api_keys k
		JOIN tenants t ON t.id = k.tenant_id
		WHERE k.key_hash = $1`, keyHash)

	err := row.Scan(
		&key.ID, &key.TenantID, &key.KeyHash, &key.Scopes, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt,
		&ten.ID, &ten.Name, &ten.IsActive, &ten.SubscriptionTier, &ten.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, models.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &key, &ten, nil
}

// TouchAPIKeyLastUsed implements pkg/tenant.Store.
func (s *Store) TouchAPIKeyLastUsed(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, at)
	return err
}

// GetTenant returns a tenant by id, used by admin/CLI surfaces.
func (s *Store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_active, subscription_tier, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.IsActive, &t.SubscriptionTier, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateAPIKey inserts a new API key for a tenant. Used out-of-band by
// provisioning tooling, not by the request path.
func (s *Store) CreateAPIKey(ctx context.Context, key models.APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (id, tenant_id, key_hash, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		key.ID, key.TenantID, key.KeyHash, key.Scopes, key.ExpiresAt)
	return err
}
