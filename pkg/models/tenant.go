// Package models contains the persistent domain entities shared across
// the HORNET core: tenants, events, incidents, findings, actions, the
// entity/campaign index, retry jobs, and the audit log.
package models

import "time"

// SubscriptionTier gates rate-limit parameters in the API layer.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierStandard   SubscriptionTier = "standard"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Tenant is the unit of isolation. Every other persisted row carries a
// TenantID and is only visible through a matching tenant context.
type Tenant struct {
	ID               string           `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	IsActive         bool             `json:"is_active" db:"is_active"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier" db:"subscription_tier"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// APIKey authenticates a caller as acting on behalf of a Tenant.
// The clear-text key is never persisted; KeyHash is compared against a
// hash of the presented credential.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	KeyHash    string     `json:"-" db:"key_hash"`
	Scopes     []string   `json:"scopes" db:"scopes"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// TenantIdentity is the request-scoped value produced by resolving an
// APIKey. It carries everything downstream components need without a
// further lookup.
type TenantIdentity struct {
	TenantID         string
	TenantName       string
	KeyID            string
	Scopes           []string
	SubscriptionTier SubscriptionTier
}

// HasScope reports whether the identity was issued the given scope.
func (t TenantIdentity) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
