package retryqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	due       []models.RetryJob
	succeeded []string
	failed    []string
	failMsgs  map[string]string
	dlq       []models.RetryJob
}

func (f *fakeStore) EnqueueRetryJob(_ context.Context, job models.RetryJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.due = append(f.due, job)
	return nil
}

func (f *fakeStore) DueRetryJobs(_ context.Context, limit int) ([]models.RetryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.due) > limit {
		out := f.due[:limit]
		f.due = f.due[limit:]
		return out, nil
	}
	out := f.due
	f.due = nil
	return out, nil
}

func (f *fakeStore) MarkRetrySucceeded(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.succeeded = append(f.succeeded, id)
	return nil
}

func (f *fakeStore) RecordRetryFailure(_ context.Context, _, id, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	if f.failMsgs == nil {
		f.failMsgs = map[string]string{}
	}
	f.failMsgs[id] = errMsg
	return nil
}

func (f *fakeStore) ListDLQ(_ context.Context, _ string) ([]models.RetryJob, error) {
	return f.dlq, nil
}

func (f *fakeStore) ReplayDLQJob(_ context.Context, _, id string) (bool, error) {
	return true, nil
}

func (f *fakeStore) PurgeAgedDLQ(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func TestProcessOneSuccessMarksSucceeded(t *testing.T) {
	store := &fakeStore{}
	p := New(store, time.Millisecond)
	p.Register("webhook", func(ctx context.Context, job models.RetryJob) error { return nil })

	p.processOne(context.Background(), models.RetryJob{ID: "j1", TenantID: "t1", JobType: "webhook", MaxAttempts: 5})

	assert.Equal(t, []string{"j1"}, store.succeeded)
	assert.Empty(t, store.failed)
	stats := p.Stats()
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Succeeded)
}

func TestProcessOneFailureRecordsFailure(t *testing.T) {
	store := &fakeStore{}
	p := New(store, time.Millisecond)
	p.Register("webhook", func(ctx context.Context, job models.RetryJob) error { return errors.New("boom") })

	p.processOne(context.Background(), models.RetryJob{ID: "j1", TenantID: "t1", JobType: "webhook", Attempts: 0, MaxAttempts: 5})

	assert.Equal(t, []string{"j1"}, store.failed)
	assert.Equal(t, "boom", store.failMsgs["j1"])
	stats := p.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.DeadLettered)
}

func TestProcessOneExhaustedAttemptsCountsDeadLettered(t *testing.T) {
	store := &fakeStore{}
	p := New(store, time.Millisecond)
	p.Register("webhook", func(ctx context.Context, job models.RetryJob) error { return errors.New("boom") })

	p.processOne(context.Background(), models.RetryJob{ID: "j1", TenantID: "t1", JobType: "webhook", Attempts: 4, MaxAttempts: 5})

	stats := p.Stats()
	assert.Equal(t, 1, stats.DeadLettered)
}

func TestProcessOneMissingHandlerRecordsFailure(t *testing.T) {
	store := &fakeStore{}
	p := New(store, time.Millisecond)

	p.processOne(context.Background(), models.RetryJob{ID: "j1", TenantID: "t1", JobType: "unknown", MaxAttempts: 5})

	require.Len(t, store.failed, 1)
	assert.Contains(t, store.failMsgs["j1"], "no handler")
}

func TestPollAndProcessDrainsDueJobs(t *testing.T) {
	store := &fakeStore{due: []models.RetryJob{
		{ID: "j1", TenantID: "t1", JobType: "webhook", MaxAttempts: 5},
		{ID: "j2", TenantID: "t1", JobType: "webhook", MaxAttempts: 5},
	}}
	p := New(store, time.Millisecond)
	p.Register("webhook", func(ctx context.Context, job models.RetryJob) error { return nil })

	n, err := p.pollAndProcess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"j1", "j2"}, store.succeeded)
}

func TestConnectorHandlerWrapsConnector(t *testing.T) {
	conn := connectorFunc(func(ctx context.Context, target string, parameters map[string]any) (string, error) {
		assert.Equal(t, "https://example.com/hook", target)
		return "", nil
	})
	h := ConnectorHandler(conn)
	err := h(context.Background(), models.RetryJob{ID: "j1", Target: "https://example.com/hook"})
	assert.NoError(t, err)
}

type connectorFunc func(ctx context.Context, target string, parameters map[string]any) (string, error)

func (f connectorFunc) Execute(ctx context.Context, target string, parameters map[string]any) (string, error) {
	return f(ctx, target, parameters)
}
