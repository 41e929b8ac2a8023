// Package dispatcher implements the event-to-incident promotion path
// (C5): pull events from the bus in a dedicated consumer group, fan
// each one out to the detection squad, aggregate confidence, and
// either hand the event to the Coordinator as a new incident or
// dismiss it.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hornet-sec/hornet/pkg/agent"
	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/storage"
)

// ConsumerGroup is the dispatcher's own consumer group name. It must
// never be shared with hornet_workers — two groups reading the same
// stream each see every message independently, which is exactly the
// isolation the dispatcher needs from any other stream consumer.
const ConsumerGroup = "hornet_dispatcher"

// DetectionThreshold is the minimum aggregated confidence that
// promotes an event to an incident.
const DetectionThreshold = 0.3

// DetectionBudget is the token budget attached to the provisional
// incident context built for the detection squad run — distinct from
// (and spent before) the incident's own TokenBudget once created.
const DetectionBudget = 50000

// PerAgentDeadline bounds a single detection-squad agent invocation.
const PerAgentDeadline = 10 * time.Second

// IncidentCreator is the subset of the Coordinator's surface the
// dispatcher calls into: handing off a freshly-promoted incident for
// FSM processing. Implemented by pkg/coordinator; declared here to
// avoid an import cycle (coordinator depends on dispatcher's output
// shape, not the other way around).
type IncidentCreator interface {
	Start(ctx context.Context, incidentID, tenantID string)
}

// Dispatcher owns the detection-squad fan-out loop.
type Dispatcher struct {
	bus          *eventbus.Bus
	store        *storage.Store
	registry     *agent.Registry
	squad        []string
	coordinator  IncidentCreator
	consumerName string
	thresholds   *config.ThresholdStore

	mu        sync.Mutex
	processed int64
	promoted  int64
	dismissed int64
}

// New constructs a Dispatcher. squad names the detection agents to run
// per event; pass nil to use agent.DefaultDetectionSquad.
func New(bus *eventbus.Bus, store *storage.Store, registry *agent.Registry, squad []string, coordinator IncidentCreator) *Dispatcher {
	if len(squad) == 0 {
		squad = agent.DefaultDetectionSquad
	}
	return &Dispatcher{
		bus:          bus,
		store:        store,
		registry:     registry,
		squad:        squad,
		coordinator:  coordinator,
		consumerName: "dispatcher_" + uuid.NewString()[:8],
	}
}

// WithThresholds wires a live ThresholdStore, making the promotion gate
// runtime-mutable via /config/thresholds. Without it the dispatcher
// falls back to the DetectionThreshold constant.
func (d *Dispatcher) WithThresholds(s *config.ThresholdStore) *Dispatcher {
	d.thresholds = s
	return d
}

func (d *Dispatcher) detectionThreshold() float64 {
	if d.thresholds == nil {
		return DetectionThreshold
	}
	return d.thresholds.Get().Detection
}

// Stats is a snapshot of the dispatcher's lifetime counters, reported
// by /health/agents. The Prometheus counters on /metrics are kept
// separately.
type Stats struct {
	Processed int64
	Promoted  int64
	Dismissed int64
}

// Stats returns a snapshot of the running counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Processed: d.processed, Promoted: d.promoted, Dismissed: d.dismissed}
}

// Run consumes batches until ctx is cancelled. Each batch error is
// logged and backed off briefly rather than propagated, matching the
// original dispatcher's never-die consumption loop.
func (d *Dispatcher) Run(ctx context.Context, batchSize int, block time.Duration) {
	if batchSize <= 0 {
		batchSize = 10
	}
	if block <= 0 {
		block = time.Second
	}
	slog.Info("dispatcher started", "group", ConsumerGroup, "squad", d.squad)
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped", "processed", d.processed, "promoted", d.promoted, "dismissed", d.dismissed)
			return
		default:
		}
		if err := d.processBatch(ctx, batchSize, block); err != nil {
			slog.Error("dispatcher batch error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context, batchSize int, block time.Duration) error {
	messages, err := d.bus.Consume(ctx, ConsumerGroup, batchSize, block)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		if err := d.processEvent(ctx, msg.Event); err != nil {
			slog.Error("dispatcher event error", "stream_id", msg.StreamID, "error", err)
			// An error here means the promotion decision was never
			// reached/persisted, so per the ack-iff-recorded invariant
			// this message is intentionally left unacked for redelivery.
			continue
		}
		if err := d.bus.Ack(ctx, ConsumerGroup, msg.StreamID); err != nil {
			slog.Error("dispatcher ack error", "stream_id", msg.StreamID, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) processEvent(ctx context.Context, raw map[string]any) error {
	d.mu.Lock()
	d.processed++
	d.mu.Unlock()

	ev, err := normalizeEvent(raw)
	if err != nil {
		return err
	}
	metrics.RecordEventIngested(ev.EventType)

	provisionalID := uuid.NewString()
	ac := agent.Context{
		TenantID:   ev.TenantID,
		IncidentID: provisionalID,
		EventID:    ev.ID,
		EventType:  ev.EventType,
		Entities:   toAgentEntities(ev.Entities),
		RawPayload: ev.RawPayload,
	}

	findings, maxConfidence, triggeringAgent := d.runDetectionSquad(ctx, ac)

	slog.Info("dispatcher detection complete",
		"event_id", ev.ID, "max_confidence", maxConfidence, "triggering_agent", triggeringAgent, "findings", len(findings))

	if maxConfidence < d.detectionThreshold() {
		d.mu.Lock()
		d.dismissed++
		d.mu.Unlock()
		metrics.RecordEventDismissed(ev.EventType)
		slog.Debug("dispatcher event dismissed", "event_id", ev.ID, "confidence", maxConfidence)
		return nil
	}

	return d.promote(ctx, ev, findings, maxConfidence, triggeringAgent)
}

func (d *Dispatcher) runDetectionSquad(ctx context.Context, ac agent.Context) ([]agent.AgentOutput, float64, string) {
	agents := d.registry.ByNames(d.squad)

	type result struct {
		out agent.AgentOutput
		ok  bool
	}
	results := make([]result, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, PerAgentDeadline)
			defer cancel()
			out, err := a.Execute(callCtx, ac)
			if err != nil {
				// A single agent's timeout or runtime error degrades
				// aggregation only; it is never returned from g.Go, so
				// it can't cancel sibling agents or fail the batch.
				slog.Warn("dispatcher agent failed", "agent", a.Name(), "error", err)
				return nil
			}
			results[i] = result{out: out, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	var findings []agent.AgentOutput
	var maxConfidence float64
	var triggering string
	for _, r := range results {
		if !r.ok {
			continue
		}
		findings = append(findings, r.out)
		if r.out.Confidence > maxConfidence {
			maxConfidence = r.out.Confidence
			triggering = r.out.AgentName
		}
	}
	return findings, maxConfidence, triggering
}

func (d *Dispatcher) promote(ctx context.Context, ev models.Event, findings []agent.AgentOutput, confidence float64, triggeringAgent string) error {
	inc := models.Incident{
		// Derived from the event so that a second promotion of the same
		// event hits CreateIncident's idempotent insert.
		ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(ev.TenantID+"/"+ev.ID)).String(),
		TenantID:   ev.TenantID,
		EventID:    ev.ID,
		State:      models.StateDetection,
		Severity:   ev.Severity,
		Confidence: confidence,
	}

	created, err := d.store.CreateIncident(ctx, inc, ev.Entities)
	if err != nil {
		return err
	}
	if !created {
		// An event id that already produced an incident (redelivery
		// after a crash between persist and ack) is not promoted again.
		return nil
	}

	for _, f := range findings {
		finding := models.AgentFinding{
			ID:             uuid.NewString(),
			IncidentID:     inc.ID,
			TenantID:       ev.TenantID,
			Agent:          f.AgentName,
			FindingType:    models.FindingTypeDetection,
			Confidence:     f.Confidence,
			Content:        f.Content,
			Reasoning:      f.Reasoning,
			TokensConsumed: f.TokensUsed,
		}
		if err := d.store.AddFinding(ctx, finding); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.promoted++
	d.mu.Unlock()
	metrics.RecordIncidentPromoted(triggeringAgent)

	if err := d.bus.PublishRealtime(ctx, "incident_created", map[string]any{
		"incident_id": inc.ID,
		"tenant_id":   inc.TenantID,
		"confidence":  confidence,
	}); err != nil {
		slog.Warn("dispatcher realtime publish failed", "incident_id", inc.ID, "error", err)
	}

	if d.coordinator != nil {
		d.coordinator.Start(ctx, inc.ID, inc.TenantID)
	}
	return nil
}

func toAgentEntities(entities []models.Entity) []agent.Entity {
	out := make([]agent.Entity, len(entities))
	for i, e := range entities {
		out[i] = agent.Entity{Type: e.Type, Value: e.Value}
	}
	return out
}

var errMissingTenant = errors.New("dispatcher: event has no tenant_id")
