// Package retryqueue implements the Retry Queue & DLQ (C8): a
// poll-and-process loop over jobs with a registered handler per
// job_type, advancing failures along the fixed backoff ladder and
// moving exhausted jobs to the dead letter queue. The poll loop shape
// is grounded on the teacher's pkg/queue/worker.go pollAndProcess
// pattern (capacity check, claim-with-row-lock, sleep-with-stop-
// channel, health snapshot), generalized from session claiming to
// generic retry-job claiming.
package retryqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
)

// ErrNoJobsAvailable names the empty-poll condition. The poll cycle
// does not return it: one that finds nothing due reports a count of
// zero and a nil error, which the processor treats as a normal empty
// poll, not a failure.
var ErrNoJobsAvailable = errors.New("retryqueue: no jobs available")

// ErrNoHandler is logged when a job's type has no registered Handler,
// and its message is recorded as that attempt's failure: the job
// advances along the backoff ladder like any failed attempt and is
// dead-lettered once attempts reach max_attempts.
var ErrNoHandler = errors.New("retryqueue: no handler registered for job type")

// Handler executes one retry job's side effect. A non-nil error is
// treated as a transient failure and advances the job along the
// backoff ladder; success marks the job SUCCEEDED.
type Handler func(ctx context.Context, job models.RetryJob) error

// Store is the subset of pkg/storage the processor depends on.
type Store interface {
	EnqueueRetryJob(ctx context.Context, job models.RetryJob) error
	DueRetryJobs(ctx context.Context, limit int) ([]models.RetryJob, error)
	MarkRetrySucceeded(ctx context.Context, tenantID, id string) error
	RecordRetryFailure(ctx context.Context, tenantID, id, errMsg string) error
	ListDLQ(ctx context.Context, tenantID string) ([]models.RetryJob, error)
	ReplayDLQJob(ctx context.Context, tenantID, id string) (bool, error)
	PurgeAgedDLQ(ctx context.Context, retention time.Duration) (int64, error)
}

// BatchSize caps how many due jobs a single poll cycle claims (spec
// §4.8: "batch ≤ 10").
const BatchSize = 10

// DefaultPollInterval is used when the poll cycle finds nothing to do.
const DefaultPollInterval = 2 * time.Second

// Processor runs the background poll loop and dispatches due jobs to
// their registered Handler.
type Processor struct {
	store        Store
	pollInterval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	statsMu   sync.Mutex
	processed int
	succeeded int
	failed    int
	deadLettered int

	log *slog.Logger
}

// New returns a Processor with no handlers registered; call Register
// for each job_type the process is responsible for before Start.
func New(store Store, pollInterval time.Duration) *Processor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Processor{
		store:        store,
		pollInterval: pollInterval,
		handlers:     make(map[string]Handler),
		stopCh:       make(chan struct{}),
		log:          slog.Default().With("component", "retryqueue"),
	}
}

// Register binds a Handler to a job_type.
func (p *Processor) Register(jobType string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = h
}

// Enqueue submits a new job, due immediately.
func (p *Processor) Enqueue(ctx context.Context, job models.RetryJob) error {
	return p.store.EnqueueRetryJob(ctx, job)
}

// Start begins the poll loop in a goroutine.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals the loop to stop and waits for it to exit. Safe to call
// more than once.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()
	p.log.Info("retry queue processor started")

	for {
		select {
		case <-p.stopCh:
			p.log.Info("retry queue processor shutting down")
			return
		case <-ctx.Done():
			return
		default:
			n, err := p.pollAndProcess(ctx)
			if err != nil {
				p.log.Error("retry queue poll failed", "error", err)
				p.sleep(time.Second)
				continue
			}
			if n == 0 {
				p.sleep(p.pollInterval)
			}
		}
	}
}

func (p *Processor) sleep(d time.Duration) {
	select {
	case <-p.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims up to BatchSize due jobs and processes each in
// turn, returning the count processed.
func (p *Processor) pollAndProcess(ctx context.Context) (int, error) {
	jobs, err := p.store.DueRetryJobs(ctx, BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due jobs: %w", err)
	}
	for _, job := range jobs {
		p.processOne(ctx, job)
	}
	return len(jobs), nil
}

func (p *Processor) processOne(ctx context.Context, job models.RetryJob) {
	p.mu.RLock()
	handler, ok := p.handlers[job.JobType]
	p.mu.RUnlock()

	log := p.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)

	if !ok {
		log.Error("no handler registered", "error", ErrNoHandler)
		if err := p.store.RecordRetryFailure(ctx, job.TenantID, job.ID, ErrNoHandler.Error()); err != nil {
			log.Error("failed to record missing-handler failure", "error", err)
		}
		p.bumpStats(false)
		metrics.RecordRetryAttempt(job.JobType, "no_handler")
		return
	}

	err := handler(ctx, job)
	p.bumpStats(err == nil)

	if err == nil {
		if uerr := p.store.MarkRetrySucceeded(ctx, job.TenantID, job.ID); uerr != nil {
			log.Error("failed to mark job succeeded", "error", uerr)
		}
		metrics.RecordRetryAttempt(job.JobType, "succeeded")
		return
	}

	log.Warn("job attempt failed", "error", err)
	if uerr := p.store.RecordRetryFailure(ctx, job.TenantID, job.ID, err.Error()); uerr != nil {
		log.Error("failed to record job failure", "error", uerr)
	}
	if job.Attempts+1 >= job.MaxAttempts {
		p.statsMu.Lock()
		p.deadLettered++
		p.statsMu.Unlock()
		metrics.RecordRetryAttempt(job.JobType, "dead_lettered")
		return
	}
	metrics.RecordRetryAttempt(job.JobType, "failed")
}

func (p *Processor) bumpStats(ok bool) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.processed++
	if ok {
		p.succeeded++
	} else {
		p.failed++
	}
}

// Stats is a point-in-time snapshot of the processor's counters. No
// HTTP endpoint reports it.
type Stats struct {
	Processed    int
	Succeeded    int
	Failed       int
	DeadLettered int
}

// Stats returns a snapshot of the processor's lifetime counters.
func (p *Processor) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return Stats{Processed: p.processed, Succeeded: p.succeeded, Failed: p.failed, DeadLettered: p.deadLettered}
}

// ListDLQ proxies to storage for the /dlq API handler.
func (p *Processor) ListDLQ(ctx context.Context, tenantID string) ([]models.RetryJob, error) {
	jobs, err := p.store.ListDLQ(ctx, tenantID)
	if err == nil {
		metrics.SetDLQDepth(len(jobs))
	}
	return jobs, err
}

// Replay proxies to storage for the /dlq/{id}/replay API handler.
func (p *Processor) Replay(ctx context.Context, tenantID, id string) (bool, error) {
	return p.store.ReplayDLQJob(ctx, tenantID, id)
}

// PurgeAged is invoked by the periodic DLQ-aging job (C11).
func (p *Processor) PurgeAged(ctx context.Context, retention time.Duration) (int64, error) {
	return p.store.PurgeAgedDLQ(ctx, retention)
}
