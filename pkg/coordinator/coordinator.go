// Package coordinator implements the per-incident finite-state
// machine (C6): one Coordinator run owns an incident exclusively,
// drives it through Detection -> Enrichment -> Analysis -> Proposal ->
// Oversight -> Execution -> a terminal state, enforcing per-phase
// deadlines and a shared token budget as it goes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hornet-sec/hornet/pkg/agent"
	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/storage"
)

// ActionExecutor is the Action Executor's surface the EXECUTION phase
// hands off to (pkg/executor). Declared here, implemented there, to
// keep the dependency edge coordinator -> executor one-directional.
type ActionExecutor interface {
	Execute(ctx context.Context, tenantID, incidentID string) (outcome models.IncidentOutcome, err error)
}

// CampaignCorrelator is the ENRICHMENT-phase hook into pkg/campaign.
type CampaignCorrelator interface {
	Correlate(ctx context.Context, tenantID, incidentID string) error
}

// lockTTL is the distributed-lock TTL applied to a running incident:
// strictly greater than the sum of every phase deadline, so a healthy
// run never has its lock expire out from under it; a crashed run's
// lock still expires and allows re-entry.
var lockTTL = totalPhaseDeadline() + 5*time.Minute

// Coordinator wires the phase-dispatch loop to its dependencies. One
// Coordinator instance is shared process-wide; Start spawns one
// goroutine per incident run.
type Coordinator struct {
	bus        *eventbus.Bus
	store      *storage.Store
	registry   *agent.Registry
	executor   ActionExecutor
	correlator CampaignCorrelator
	thresholds *config.ThresholdStore
}

// WithThresholds wires a live ThresholdStore, making the DETECTION
// dismiss gate and ANALYSIS investigate gate runtime-mutable via
// /config/thresholds. Without it the Coordinator falls back to the
// ThresholdDismiss/ThresholdInvestigate constants. Per spec §9's Open
// Question, the Coordinator always recomputes its own gate rather than
// trusting the dispatcher's decision, so this store may be set
// independently of the dispatcher's.
func (c *Coordinator) WithThresholds(s *config.ThresholdStore) *Coordinator {
	c.thresholds = s
	return c
}

func (c *Coordinator) thresholdDismiss() float64 {
	if c.thresholds == nil {
		return ThresholdDismiss
	}
	return c.thresholds.Get().Dismiss
}

func (c *Coordinator) thresholdInvestigate() float64 {
	if c.thresholds == nil {
		return ThresholdInvestigate
	}
	return c.thresholds.Get().Investigate
}

// New constructs a Coordinator. executor/correlator may be nil in
// configurations that don't wire those phases yet (EXECUTION then
// always closes with outcome "resolved" and ENRICHMENT skips
// correlation) — useful for the detection-only S1/S2 test scenarios.
func New(bus *eventbus.Bus, store *storage.Store, registry *agent.Registry, executor ActionExecutor, correlator CampaignCorrelator) *Coordinator {
	return &Coordinator{bus: bus, store: store, registry: registry, executor: executor, correlator: correlator}
}

// Start launches the FSM loop for incidentID in a new goroutine. It
// satisfies dispatcher.IncidentCreator. Errors acquiring the lock or
// unexpected failures are logged; Start itself never blocks the caller.
func (c *Coordinator) Start(ctx context.Context, incidentID, tenantID string) {
	go c.run(context.Background(), tenantID, incidentID)
}

func (c *Coordinator) run(ctx context.Context, tenantID, incidentID string) {
	resource := "incident:" + incidentID
	acquired, err := c.bus.TryAcquire(ctx, resource, lockTTL)
	if err != nil {
		slog.Error("coordinator lock error", "incident_id", incidentID, "error", err)
		return
	}
	if !acquired {
		slog.Info("coordinator skipped, lock held elsewhere", "incident_id", incidentID)
		return
	}
	defer func() {
		if err := c.bus.Release(ctx, resource); err != nil && !errors.Is(err, eventbus.ErrLockNotHeld) {
			slog.Warn("coordinator lock release failed", "incident_id", incidentID, "error", err)
		}
	}()

	inc, err := c.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		slog.Error("coordinator failed to load incident", "incident_id", incidentID, "error", err)
		return
	}

	c.process(ctx, inc)
}

// process drives inc through phases until it reaches a terminal state.
// Every transition is persisted before the next phase begins (spec
// §4.5: "an observer reading from C2 must see transitions monotonic
// and in order"); pub/sub notification happens only after persistence.
func (c *Coordinator) process(ctx context.Context, inc *models.Incident) {
	for !terminalStates[inc.State] {
		if status := inc.CheckTokenBudget(); status == models.BudgetCritical {
			c.closeIncident(ctx, inc, models.OutcomeBudgetExhausted)
			return
		}

		phase := inc.State
		phaseStart := time.Now()
		phaseCtx, cancel := context.WithTimeout(ctx, phaseDeadlines[inc.State])
		err := c.dispatchPhase(phaseCtx, inc)
		cancel()

		outcome := "ok"
		if err != nil {
			outcome = "error"
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = "timeout"
			}
		}
		metrics.RecordPhaseDuration(string(phase), outcome, time.Since(phaseStart))

		if err != nil {
			c.handlePhaseError(ctx, inc, err)
			return
		}
	}
}

func (c *Coordinator) dispatchPhase(ctx context.Context, inc *models.Incident) error {
	switch inc.State {
	case models.StateDetection:
		return c.runDetection(ctx, inc)
	case models.StateEnrichment:
		return c.runEnrichment(ctx, inc)
	case models.StateAnalysis:
		return c.runAnalysis(ctx, inc)
	case models.StateProposal:
		return c.runProposal(ctx, inc)
	case models.StateOversight:
		return c.runOversight(ctx, inc)
	case models.StateExecution:
		return c.runExecution(ctx, inc)
	default:
		return fmt.Errorf("coordinator: no phase handler for state %s", inc.State)
	}
}

// handlePhaseError implements spec §4.5's failure semantics: a deadline
// expiry during DETECTION/ENRICHMENT closes the incident with outcome
// timeout_low_confidence. Any other failure is logged, moved to ERROR
// where the transition table allows it (only from EXECUTION; from any
// other state the transition is rejected and logged), and then forced
// to CLOSED with no outcome.
func (c *Coordinator) handlePhaseError(ctx context.Context, inc *models.Incident, phaseErr error) {
	isDeadline := errors.Is(phaseErr, context.DeadlineExceeded)
	lowConfidencePhase := inc.State == models.StateDetection || inc.State == models.StateEnrichment

	if isDeadline && lowConfidencePhase {
		slog.Warn("coordinator phase timeout, closing low confidence", "incident_id", inc.ID, "phase", inc.State)
		c.closeIncident(ctx, inc, models.OutcomeTimeoutLowConf)
		return
	}

	slog.Error("coordinator phase failed", "incident_id", inc.ID, "phase", inc.State, "error", phaseErr)
	c.transition(ctx, inc, models.StateError, "")
	c.closeIncident(ctx, inc, "")
}

// transition validates and persists a state change, then best-effort
// publishes it. It is a no-op (and logs) for an illegal edge.
func (c *Coordinator) transition(ctx context.Context, inc *models.Incident, to models.IncidentState, reason string) bool {
	if !canTransition(inc.State, to) {
		slog.Warn("coordinator rejected illegal transition", "incident_id", inc.ID, "from", inc.State, "to", to)
		return false
	}
	from := inc.State
	inc.State = to

	update := storage.IncidentUpdate{State: &to, TokensUsed: &inc.TokensUsed, Confidence: &inc.Confidence}
	if reason != "" {
		update.EscalationReason = &reason
	}
	if err := c.store.UpdateIncident(ctx, inc.TenantID, inc.ID, update); err != nil {
		slog.Error("coordinator failed to persist transition", "incident_id", inc.ID, "error", err)
	}

	if err := c.bus.SetIncidentState(ctx, inc.ID, string(to)); err != nil {
		slog.Warn("coordinator incident state cache write failed", "incident_id", inc.ID, "error", err)
	}
	if err := c.bus.PublishRealtime(ctx, "incident_state_changed", map[string]any{
		"incident_id": inc.ID,
		"tenant_id":   inc.TenantID,
		"from":        string(from),
		"to":          string(to),
	}); err != nil {
		slog.Warn("coordinator realtime publish failed", "incident_id", inc.ID, "error", err)
	}
	return true
}

// closeIncident forces the incident to CLOSED regardless of the
// current state's normal targets — used by the budget-critical and
// cleanup paths, both of which must always be able to reach CLOSED.
func (c *Coordinator) closeIncident(ctx context.Context, inc *models.Incident, outcome models.IncidentOutcome) {
	inc.State = models.StateClosed
	update := storage.IncidentUpdate{
		State:      statePtr(models.StateClosed),
		TokensUsed: &inc.TokensUsed,
		Confidence: &inc.Confidence,
		Closed:     true,
	}
	if outcome != "" {
		update.Outcome = &outcome
	}
	if err := c.store.UpdateIncident(ctx, inc.TenantID, inc.ID, update); err != nil {
		slog.Error("coordinator failed to close incident", "incident_id", inc.ID, "error", err)
	}
	metrics.RecordIncidentClosed(string(outcome))
	if err := c.bus.PublishRealtime(ctx, "incident_closed", map[string]any{
		"incident_id": inc.ID,
		"tenant_id":   inc.TenantID,
		"outcome":     string(outcome),
	}); err != nil {
		slog.Warn("coordinator realtime publish failed", "incident_id", inc.ID, "error", err)
	}
}

func statePtr(s models.IncidentState) *models.IncidentState { return &s }

// ForceClose closes an incident found abandoned by the periodic
// dispatcher-timeout scan (pkg/jobs): its coordinator run presumably
// crashed after the distributed lock TTL lapsed, leaving the row
// stuck in a non-terminal state with no process driving it forward.
// Unlike closeIncident, this does not assume the caller already holds
// the incident's lock or has an in-memory Incident to mutate; it
// reloads and updates directly.
func (c *Coordinator) ForceClose(ctx context.Context, tenantID, incidentID, reason string) error {
	inc, err := c.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return fmt.Errorf("coordinator: force close load incident: %w", err)
	}
	if terminalStates[inc.State] {
		return nil
	}
	inc.EscalationReason = reason
	c.closeIncident(ctx, inc, models.OutcomeTimeoutLowConf)
	return nil
}

// spendTokens adds an agent's declared cost to the running total and
// persists it immediately, so a crash mid-phase never loses spend —
// the budget gate reads this value fresh on every phase entry.
func (c *Coordinator) spendTokens(ctx context.Context, inc *models.Incident, n int) {
	inc.TokensUsed += n
	metrics.RecordTokensSpent(string(inc.State), n)
	if _, err := c.bus.IncTokens(ctx, inc.ID, n); err != nil {
		slog.Warn("coordinator token counter update failed", "incident_id", inc.ID, "error", err)
	}
}

// recordFinding persists an AgentOutput as an AgentFinding and spends
// its declared token cost.
func (c *Coordinator) recordFinding(ctx context.Context, inc *models.Incident, findingType string, out agent.AgentOutput) {
	c.spendTokens(ctx, inc, out.TokensUsed)
	f := models.AgentFinding{
		ID:             newFindingID(),
		IncidentID:     inc.ID,
		TenantID:       inc.TenantID,
		Agent:          out.AgentName,
		FindingType:    findingType,
		Confidence:     out.Confidence,
		Content:        out.Content,
		Reasoning:      out.Reasoning,
		TokensConsumed: out.TokensUsed,
	}
	if err := c.store.AddFinding(ctx, f); err != nil {
		slog.Error("coordinator failed to persist finding", "incident_id", inc.ID, "agent", out.AgentName, "error", err)
	}
}

func newFindingID() string { return uuid.NewString() }
