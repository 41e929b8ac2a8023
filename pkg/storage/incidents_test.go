package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/storage"
	"github.com/hornet-sec/hornet/test/util"
)

// seedTenant inserts a tenant row directly; tests deal with
// tenant_id-scoped tables that carry an FK into tenants, and the
// store itself exposes no tenant-provisioning path on the request
// side (CreateAPIKey/GetTenant are the provisioning surface, not
// bare tenant creation).
func seedTenant(t *testing.T, store *storage.Store) string {
	t.Helper()
	id := uuid.NewString()
	_, err := store.Pool().Exec(context.Background(),
		`INSERT INTO tenants (id, name, is_active, subscription_tier) VALUES ($1, $2, true, 'free')`,
		id, "tenant-"+id[:8])
	require.NoError(t, err)
	return id
}

func TestCreateIncidentIsIdempotentOnID(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	inc := models.Incident{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		State:    models.StateDetection,
	}

	created, err := store.CreateIncident(ctx, inc, nil)
	require.NoError(t, err)
	require.True(t, created)

	// Re-creating the same id, even with different payload, is a
	// no-op: the spec's round-trip/idempotence law for create_incident.
	dup := inc
	dup.State = models.StateAnalysis
	created, err = store.CreateIncident(ctx, dup, nil)
	require.NoError(t, err)
	require.False(t, created)

	got, err := store.GetIncident(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateDetection, got.State)
}

func TestCreateIncidentIndexesEntities(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	inc := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection}
	entities := []models.Entity{{Type: "ip", Value: "10.0.0.1"}, {Type: "host", Value: "web-1"}}

	created, err := store.CreateIncident(ctx, inc, entities)
	require.NoError(t, err)
	require.True(t, created)

	got, err := store.GetIncidentEntities(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestIncidentsAreIsolatedByTenant(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantA := seedTenant(t, store)
	tenantB := seedTenant(t, store)

	inc := models.Incident{ID: uuid.NewString(), TenantID: tenantA, State: models.StateDetection}
	created, err := store.CreateIncident(ctx, inc, nil)
	require.NoError(t, err)
	require.True(t, created)

	_, err = store.GetIncident(ctx, tenantB, inc.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	list, err := store.ListIncidents(ctx, tenantB, models.IncidentFilter{})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = store.ListIncidents(ctx, tenantA, models.IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUpdateIncidentStampsClosedAtOnce(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	inc := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection}
	_, err := store.CreateIncident(ctx, inc, nil)
	require.NoError(t, err)

	closedState := models.StateClosed
	outcome := models.OutcomeResolved
	err = store.UpdateIncident(ctx, tenantID, inc.ID, storage.IncidentUpdate{
		State:   &closedState,
		Outcome: &outcome,
		Closed:  true,
	})
	require.NoError(t, err)

	got, err := store.GetIncident(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClosedAt)
	firstClosedAt := *got.ClosedAt

	// A second close-triggering update must not move closed_at.
	err = store.UpdateIncident(ctx, tenantID, inc.ID, storage.IncidentUpdate{Closed: true})
	require.NoError(t, err)

	got, err = store.GetIncident(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.Equal(t, firstClosedAt, *got.ClosedAt)
}

func TestUpdateIncidentLeavesUnsetFieldsUntouched(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	inc := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection, Confidence: 0.4}
	_, err := store.CreateIncident(ctx, inc, nil)
	require.NoError(t, err)

	summary := "correlated with three prior logins"
	err = store.UpdateIncident(ctx, tenantID, inc.ID, storage.IncidentUpdate{Summary: &summary})
	require.NoError(t, err)

	got, err := store.GetIncident(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.Equal(t, summary, got.Summary)
	require.Equal(t, models.StateDetection, got.State)
	require.InDelta(t, 0.4, got.Confidence, 0.0001)
}

func TestGetIncidentUnknownIDReturnsNotFound(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	_, err := store.GetIncident(ctx, tenantID, uuid.NewString())
	require.ErrorIs(t, err, models.ErrNotFound)
}
