package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/test/util"
)

func TestRetryJobBackoffAndDeadLettering(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	job := models.RetryJob{ID: uuid.NewString(), TenantID: tenantID, JobType: "webhook", Target: "http://example.invalid", MaxAttempts: 2}
	require.NoError(t, store.EnqueueRetryJob(ctx, job))

	due, err := store.DueRetryJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, models.RetryPending, due[0].Status)

	require.NoError(t, store.RecordRetryFailure(ctx, tenantID, job.ID, "connection refused"))
	dlq, err := store.ListDLQ(ctx, tenantID)
	require.NoError(t, err)
	require.Empty(t, dlq, "one failure out of max_attempts=2 must not dead-letter yet")

	require.NoError(t, store.RecordRetryFailure(ctx, tenantID, job.ID, "connection refused"))
	dlq, err = store.ListDLQ(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	require.Equal(t, models.RetryDeadLettered, dlq[0].Status)
	require.Len(t, dlq[0].ErrorHistory, 2)
}

func TestReplayDLQJobResetsAttempts(t *testing.T) {
	store := util.SetupTestDatabase(t)
	ctx := context.Background()
	tenantID := seedTenant(t, store)

	job := models.RetryJob{ID: uuid.NewString(), TenantID: tenantID, JobType: "webhook", Target: "http://example.invalid", MaxAttempts: 1}
	require.NoError(t, store.EnqueueRetryJob(ctx, job))
	require.NoError(t, store.RecordRetryFailure(ctx, tenantID, job.ID, "timeout"))

	ok, err := store.ReplayDLQJob(ctx, tenantID, job.ID)
	require.NoError(t, err)
	require.True(t, ok)

	due, err := store.DueRetryJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, 0, due[0].Attempts)
	require.Empty(t, due[0].ErrorHistory)

	ok, err = store.ReplayDLQJob(ctx, tenantID, job.ID)
	require.NoError(t, err)
	require.False(t, ok, "replaying a job that is no longer DEAD_LETTERED is a no-op")
}
