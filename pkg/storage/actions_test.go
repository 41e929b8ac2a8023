package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/test/util"
)

func TestUpdateActionStatusEnforcesLegalTransitions(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	inc := models.Incident{ID: uuid.NewString(), TenantID: tenantID, State: models.StateProposal}
	_, err := store.CreateIncident(ctx, inc, nil)
	require.NoError(t, err)

	action := models.Action{
		ID:         uuid.NewString(),
		IncidentID: inc.ID,
		TenantID:   tenantID,
		ActionType: "isolate_host",
		Target:     "web-1",
		RiskLevel:  models.RiskLow,
		Status:     models.ActionProposed,
	}
	require.NoError(t, store.CreateAction(ctx, action))

	// PROPOSED -> EXECUTING is not on the ladder; must be rejected.
	err = store.UpdateActionStatus(ctx, tenantID, action.ID, models.ActionExecuting, "", "")
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	require.NoError(t, store.UpdateActionStatus(ctx, tenantID, action.ID, models.ActionApproved, "", ""))

	actions, err := store.ListActionsForIncident(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, models.ActionApproved, actions[0].Status)
	require.NotNil(t, actions[0].ApprovedAt)

	require.NoError(t, store.UpdateActionStatus(ctx, tenantID, action.ID, models.ActionExecuting, "", "rollback-handle-1"))
	actions, err = store.ListActionsForIncident(ctx, tenantID, inc.ID)
	require.NoError(t, err)
	require.Equal(t, "rollback-handle-1", actions[0].RollbackHandle)
	require.NotNil(t, actions[0].ExecutedAt)
}

func TestUpdateActionStatusUnknownIDReturnsNotFound(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	err := store.UpdateActionStatus(ctx, tenantID, uuid.NewString(), models.ActionApproved, "", "")
	require.ErrorIs(t, err, models.ErrNotFound)
}
