package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/test/util"
)

func TestLinkIncidentsIsOrderIndependent(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	a := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection}
	b := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection}
	_, err := store.CreateIncident(ctx, a, nil)
	require.NoError(t, err)
	_, err = store.CreateIncident(ctx, b, nil)
	require.NoError(t, err)

	require.NoError(t, store.LinkIncidents(ctx, tenantID, a.ID, b.ID, "entity_overlap", 0.9, nil, "shared source IP"))
	// Reverse order must be a no-op against the canonical pair, not a
	// second, duplicate link.
	require.NoError(t, store.LinkIncidents(ctx, tenantID, b.ID, a.ID, "entity_overlap", 0.9, nil, "shared source IP"))

	graph, err := store.GetCampaignGraph(ctx, tenantID, 24)
	require.NoError(t, err)
	require.Len(t, graph, 1)
}

func TestCreateCampaignLinksEveryPair(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		_, err := store.CreateIncident(ctx, models.Incident{ID: ids[i], TenantID: tenantID, State: models.StateAnalysis}, nil)
		require.NoError(t, err)
	}

	campaignID, err := store.CreateCampaign(ctx, tenantID, ids)
	require.NoError(t, err)
	require.NotEmpty(t, campaignID)

	for _, id := range ids {
		inc, err := store.GetIncident(ctx, tenantID, id)
		require.NoError(t, err)
		require.Equal(t, campaignID, inc.CampaignID)
	}

	related, err := store.GetCampaignIncidents(ctx, tenantID, ids[0])
	require.NoError(t, err)
	require.Len(t, related, 2, "the other two members of a 3-incident campaign must be reachable from any one of them")
}

func TestFindIncidentsByEntityRespectsWindowAndExclusion(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	target := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection}
	other := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateDetection}
	entities := []models.Entity{{Type: "ip", Value: "203.0.113.5"}}

	_, err := store.CreateIncident(ctx, target, entities)
	require.NoError(t, err)
	_, err = store.CreateIncident(ctx, other, entities)
	require.NoError(t, err)

	found, err := store.FindIncidentsByEntity(ctx, tenantID, "ip", "203.0.113.5", 60, target.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, other.ID, found[0].ID)
}
