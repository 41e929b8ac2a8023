// Package jobs implements the Periodic Jobs component (C11): a small
// set of calendar-scheduled tasks (baseline recomputation, detection
// threshold tuning, DLQ aging, rate-limit bucket sweep) run via
// robfig/cron/v3, plus a
// sub-minute ticker loop for the dispatcher timeout scan — a safety
// net that force-closes incidents whose coordinator run died after its
// distributed lock expired. The Start/Stop/run/runAll ticker shape for
// the timeout scan is grounded on the teacher's pkg/cleanup/service.go;
// the cron scheduling for the calendar-like jobs has no teacher
// equivalent and is built directly against robfig/cron/v3, which the
// teacher's go.mod already carries for alert-chain scheduling.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hornet-sec/hornet/pkg/models"
)

// DLQPurger is satisfied by pkg/retryqueue.Processor.
type DLQPurger interface {
	PurgeAged(ctx context.Context, retention time.Duration) (int64, error)
}

// ThresholdTuner recomputes and persists detection thresholds from
// recent outcome history; implemented by whatever owns pkg/config's
// mutable threshold state (the /config/thresholds handler's backing
// store).
type ThresholdTuner interface {
	TuneThresholds(ctx context.Context) error
}

// BaselineRecomputer rebuilds the entity/behavior baselines detection
// agents compare against.
type BaselineRecomputer interface {
	RecomputeBaselines(ctx context.Context) error
}

// StaleIncidentCloser force-closes an incident discovered stuck past
// its phase deadline by the timeout scan. Implemented by
// pkg/coordinator, whose ForceClose closes the incident with outcome
// timeout_low_confidence.
type StaleIncidentCloser interface {
	ForceClose(ctx context.Context, tenantID, incidentID, reason string) error
}

// StaleIncidentLister is the read half the scan needs from storage.
type StaleIncidentLister interface {
	ListStaleIncidents(ctx context.Context, olderThan time.Duration) ([]models.Incident, error)
}

// RateLimiterSweeper discards the API layer's tracked (tenant,
// endpoint) rate-limit buckets so the map doesn't grow unbounded as
// tenants and routes come and go. Implemented by pkg/api.RateLimiter.
type RateLimiterSweeper interface {
	Sweep()
}

// Config tunes every job's schedule and thresholds.
type Config struct {
	// BaselineRecomputeCron and ThresholdTuneCron are standard 5-field
	// cron expressions (robfig/cron/v3 parser.Standard).
	BaselineRecomputeCron string
	ThresholdTuneCron     string
	DLQAgeCron            string
	RateLimitSweepCron    string

	DLQRetention time.Duration

	// StaleIncidentScanInterval is the plain-ticker cadence for the
	// dispatcher timeout scan (sub-minute, so cron is the wrong tool).
	StaleIncidentScanInterval time.Duration
	// StaleIncidentAge is how long an incident may sit without a state
	// change before the scan treats it as abandoned.
	StaleIncidentAge time.Duration
}

// DefaultConfig returns sane defaults for every schedule.
func DefaultConfig() Config {
	return Config{
		BaselineRecomputeCron:     "0 */6 * * *", // every 6 hours
		ThresholdTuneCron:         "0 3 * * *",   // daily at 03:00
		DLQAgeCron:                "30 4 * * *",  // daily at 04:30
		RateLimitSweepCron:        "0 * * * *",   // hourly
		DLQRetention:              30 * 24 * time.Hour,
		StaleIncidentScanInterval: 30 * time.Second,
		StaleIncidentAge:          20 * time.Minute,
	}
}

// Scheduler owns the cron jobs and the stale-incident ticker loop.
type Scheduler struct {
	cfg Config

	cron *cron.Cron

	lister StaleIncidentLister
	closer StaleIncidentCloser
	dlq    DLQPurger
	tuner  ThresholdTuner
	base   BaselineRecomputer
	limits RateLimiterSweeper

	cancel context.CancelFunc
	done   chan struct{}

	log *slog.Logger
}

// SetRateLimiterSweeper wires the API rate limiter's bucket sweep into
// the scheduler as a cron job on RateLimitSweepCron. Optional, and
// only takes effect when called before Start; with a nil sweeper (the
// default) no sweep job is registered.
func (s *Scheduler) SetRateLimiterSweeper(sweeper RateLimiterSweeper) {
	s.limits = sweeper
}

// New builds a Scheduler. Any of dlq/tuner/base/closer+lister may be
// nil to disable that job: a nil cron dependency's job is never
// registered at Start, and the stale-incident scan does nothing on a
// tick while its lister or closer is nil.
func New(cfg Config, lister StaleIncidentLister, closer StaleIncidentCloser, dlq DLQPurger, tuner ThresholdTuner, base BaselineRecomputer) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		cron:   cron.New(),
		lister: lister,
		closer: closer,
		dlq:    dlq,
		tuner:  tuner,
		base:   base,
		log:    slog.Default().With("component", "jobs"),
	}
}

// Start registers the cron jobs and launches the stale-incident
// ticker loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	if s.base != nil && s.cfg.BaselineRecomputeCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.BaselineRecomputeCron, func() { s.runBaselineRecompute(ctx) }); err != nil {
			s.log.Error("invalid baseline recompute schedule", "error", err)
		}
	}
	if s.tuner != nil && s.cfg.ThresholdTuneCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ThresholdTuneCron, func() { s.runThresholdTune(ctx) }); err != nil {
			s.log.Error("invalid threshold tune schedule", "error", err)
		}
	}
	if s.dlq != nil && s.cfg.DLQAgeCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.DLQAgeCron, func() { s.runDLQAge(ctx) }); err != nil {
			s.log.Error("invalid DLQ aging schedule", "error", err)
		}
	}
	if s.limits != nil && s.cfg.RateLimitSweepCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.RateLimitSweepCron, s.limits.Sweep); err != nil {
			s.log.Error("invalid rate limit sweep schedule", "error", err)
		}
	}
	s.cron.Start()

	go s.runStaleScanLoop(ctx)

	s.log.Info("periodic jobs started",
		"baseline_cron", s.cfg.BaselineRecomputeCron,
		"threshold_cron", s.cfg.ThresholdTuneCron,
		"dlq_age_cron", s.cfg.DLQAgeCron,
		"stale_scan_interval", s.cfg.StaleIncidentScanInterval)
}

// Stop halts the cron scheduler and the ticker loop, waiting for the
// in-flight tick (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
	<-s.done
	s.log.Info("periodic jobs stopped")
}

func (s *Scheduler) runStaleScanLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.StaleIncidentScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runStaleIncidentScan(ctx)
		}
	}
}

func (s *Scheduler) runStaleIncidentScan(ctx context.Context) {
	if s.lister == nil || s.closer == nil {
		return
	}
	stale, err := s.lister.ListStaleIncidents(ctx, s.cfg.StaleIncidentAge)
	if err != nil {
		s.log.Error("stale incident scan failed", "error", err)
		return
	}
	for _, inc := range stale {
		if err := s.closer.ForceClose(ctx, inc.TenantID, inc.ID, "dispatcher timeout scan: stuck past phase deadline"); err != nil {
			s.log.Error("failed to force-close stale incident", "incident_id", inc.ID, "error", err)
			continue
		}
		s.log.Warn("force-closed stale incident", "incident_id", inc.ID, "tenant_id", inc.TenantID, "last_state", inc.State)
	}
}

func (s *Scheduler) runBaselineRecompute(ctx context.Context) {
	if err := s.base.RecomputeBaselines(ctx); err != nil {
		s.log.Error("baseline recompute failed", "error", err)
		return
	}
	s.log.Info("baseline recompute complete")
}

func (s *Scheduler) runThresholdTune(ctx context.Context) {
	if err := s.tuner.TuneThresholds(ctx); err != nil {
		s.log.Error("threshold tuning failed", "error", err)
		return
	}
	s.log.Info("threshold tuning complete")
}

func (s *Scheduler) runDLQAge(ctx context.Context) {
	n, err := s.dlq.PurgeAged(ctx, s.cfg.DLQRetention)
	if err != nil {
		s.log.Error("DLQ aging failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("DLQ aging purged entries", "count", n)
	}
}
