// Package tenant resolves API-key credentials to a TenantIdentity and
// carries that identity through a request's context, the way C1 of the
// core is specified: a per-operation value, never a process global.
package tenant

import (
	"context"

	"github.com/hornet-sec/hornet/pkg/models"
)

type contextKey struct{}

var identityKey = contextKey{}

// WithIdentity attaches identity to ctx. Every downstream call that
// needs tenant scoping (storage reads/writes, event publication, audit
// logging) must receive a context built from this call.
func WithIdentity(ctx context.Context, identity models.TenantIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// FromContext returns the identity attached to ctx, if any. The ok
// result is false for contexts that never went through WithIdentity —
// callers on the hot path should treat that as a programming error,
// not silently proceed unscoped.
func FromContext(ctx context.Context) (models.TenantIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(models.TenantIdentity)
	return identity, ok
}

// MustFromContext panics if ctx carries no identity. Reserved for
// internal call sites downstream of the auth middleware, where the
// absence of an identity is a programmer error, not a request failure.
func MustFromContext(ctx context.Context) models.TenantIdentity {
	identity, ok := FromContext(ctx)
	if !ok {
		panic("tenant: context has no TenantIdentity")
	}
	return identity
}
