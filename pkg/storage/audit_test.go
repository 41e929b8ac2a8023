package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/test/util"
)

func TestAuditLogIsInsertOnlyAndTenantScoped(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantA := seedTenant(t, store)
	tenantB := seedTenant(t, store)

	entry := models.AuditLogEntry{
		ID:           uuid.NewString(),
		TenantID:     tenantA,
		Timestamp:    time.Now().UTC(),
		Actor:        "key-1",
		Action:       "incident.action_decision",
		ResourceType: "action",
		ResourceID:   "act-1",
		Details:      map[string]any{"response_type": "approve"},
		Signature:    "deadbeef",
	}
	require.NoError(t, store.InsertAuditLogEntry(ctx, entry))

	listA, err := store.ListAuditLog(ctx, tenantA, 10)
	require.NoError(t, err)
	require.Len(t, listA, 1)
	require.Equal(t, entry.Action, listA[0].Action)
	require.Equal(t, entry.Signature, listA[0].Signature)

	listB, err := store.ListAuditLog(ctx, tenantB, 10)
	require.NoError(t, err)
	require.Empty(t, listB, "audit entries must not leak across tenants")

	_, err = store.Pool().Exec(ctx, `UPDATE audit_log_entries SET action = 'tampered' WHERE id = $1`, entry.ID)
	require.Error(t, err, "audit_log_entries must reject UPDATE at the database level")

	_, err = store.Pool().Exec(ctx, `DELETE FROM audit_log_entries WHERE id = $1`, entry.ID)
	require.Error(t, err, "audit_log_entries must reject DELETE at the database level")
}
