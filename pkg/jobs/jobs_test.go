package jobs

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

type fakeLister struct {
	stale []models.Incident
	err   error
}

func (f *fakeLister) ListStaleIncidents(_ context.Context, _ time.Duration) ([]models.Incident, error) {
	return f.stale, f.err
}

type fakeCloser struct {
	mu     sync.Mutex
	closed []string
	err    error
}

func (f *fakeCloser) ForceClose(_ context.Context, _, incidentID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.closed = append(f.closed, incidentID)
	f.mu.Unlock()
	return nil
}

type fakeDLQ struct {
	purged int64
	err    error
}

func (f *fakeDLQ) PurgeAged(_ context.Context, _ time.Duration) (int64, error) {
	return f.purged, f.err
}

type fakeTuner struct{ called int }

func (f *fakeTuner) TuneThresholds(_ context.Context) error { f.called++; return nil }

type fakeBaseline struct{ called int }

func (f *fakeBaseline) RecomputeBaselines(_ context.Context) error { f.called++; return nil }

func TestRunStaleIncidentScanForceClosesEach(t *testing.T) {
	lister := &fakeLister{stale: []models.Incident{{ID: "i1", TenantID: "t1"}, {ID: "i2", TenantID: "t1"}}}
	closer := &fakeCloser{}
	s := New(DefaultConfig(), lister, closer, nil, nil, nil)

	s.runStaleIncidentScan(context.Background())

	assert.ElementsMatch(t, []string{"i1", "i2"}, closer.closed)
}

func TestRunStaleIncidentScanSkipsWithoutDependencies(t *testing.T) {
	s := New(DefaultConfig(), nil, nil, nil, nil, nil)
	assert.NotPanics(t, func() { s.runStaleIncidentScan(context.Background()) })
}

func TestRunStaleIncidentScanContinuesPastCloseFailure(t *testing.T) {
	lister := &fakeLister{stale: []models.Incident{{ID: "i1", TenantID: "t1"}}}
	closer := &fakeCloser{err: errors.New("boom")}
	s := New(DefaultConfig(), lister, closer, nil, nil, nil)

	assert.NotPanics(t, func() { s.runStaleIncidentScan(context.Background()) })
	assert.Empty(t, closer.closed)
}

func TestRunDLQAgeInvokesPurger(t *testing.T) {
	dlq := &fakeDLQ{purged: 5}
	s := New(DefaultConfig(), nil, nil, dlq, nil, nil)
	s.runDLQAge(context.Background())
}

func TestRunThresholdTuneInvokesTuner(t *testing.T) {
	tuner := &fakeTuner{}
	s := New(DefaultConfig(), nil, nil, nil, tuner, nil)
	s.runThresholdTune(context.Background())
	assert.Equal(t, 1, tuner.called)
}

func TestRunBaselineRecomputeInvokesRecomputer(t *testing.T) {
	base := &fakeBaseline{}
	s := New(DefaultConfig(), nil, nil, nil, nil, base)
	s.runBaselineRecompute(context.Background())
	assert.Equal(t, 1, base.called)
}

func TestStartStopIsIdempotentAndClean(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleIncidentScanInterval = 10 * time.Millisecond
	lister := &fakeLister{}
	closer := &fakeCloser{}
	s := New(cfg, lister, closer, nil, nil, nil)

	s.Start(context.Background())
	s.Start(context.Background()) // second call is a no-op
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop() // second call is a no-op

	require.NotNil(t, s)
}
