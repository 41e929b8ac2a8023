package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// validateTenantID checks that id is an opaque UUID-formatted
// identifier before it is ever interpolated into a SET LOCAL
// statement, which Postgres does not allow to be parameterized like an
// ordinary query argument (spec §4.2: "any value that will be
// interpolated ... must be validated as the expected opaque identifier
// format before use").
func validateTenantID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", models.ErrInvalidIdentifier, id)
	}
	return nil
}

// withTenantTx opens a transaction, sets the session-local tenant
// setting the RLS policies key on, runs fn, and commits. The setting
// is scoped to the transaction (SET LOCAL) so it can never leak to a
// connection returned to the pool and reused by an unrelated request.
func (s *Store) withTenantTx(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL app.current_tenant_id = '%s'", tenantID)); err != nil {
		return fmt.Errorf("storage: set tenant session var: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}

// withSystemTx runs fn in a transaction with no tenant session
// variable set, for operations that are inherently cross-tenant (API
// key lookup by hash, tenant administration, and the background
// queries in retryqueue.go and ListStaleIncidents). tenants and
// api_keys carry no RLS policy at all. The RLS-scoped tables' policies
// explicitly let a row through when the session variable is unset
// (see migrations), so an absent tenant context reads as "system",
// not as "tenant with a NULL id" — the two cases a plain equality
// check could never tell apart.

func (s *Store) withSystemTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
