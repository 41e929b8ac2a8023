package models

import "time"

// IncidentState is one of the FSM phases an Incident moves through.
// States and their legal transitions are defined in pkg/coordinator;
// this is the persisted projection of that table.
type IncidentState string

const (
	StateIdle       IncidentState = "IDLE"
	StateDetection  IncidentState = "DETECTION"
	StateEnrichment IncidentState = "ENRICHMENT"
	StateAnalysis   IncidentState = "ANALYSIS"
	StateProposal   IncidentState = "PROPOSAL"
	StateOversight  IncidentState = "OVERSIGHT"
	StateExecution  IncidentState = "EXECUTION"
	StateEscalated  IncidentState = "ESCALATED"
	StateError      IncidentState = "ERROR"
	StateClosed     IncidentState = "CLOSED"
)

// IncidentOutcome records why a CLOSED incident was closed.
type IncidentOutcome string

const (
	OutcomeDismissed          IncidentOutcome = "dismissed"
	OutcomeResolved           IncidentOutcome = "resolved"
	OutcomePartialFailure     IncidentOutcome = "partial_failure"
	OutcomeBudgetExhausted    IncidentOutcome = "budget_exhausted"
	OutcomeTimeoutLowConf     IncidentOutcome = "timeout_low_confidence"
	OutcomeEscalationResolved IncidentOutcome = "escalation_resolved"
)

// DefaultTokenBudget is the per-incident token cap applied when none is
// configured explicitly.
const DefaultTokenBudget = 50000

// Incident is a tenant-scoped record that owns its findings and
// actions and advances through the FSM. It is mutable only by its
// owning Coordinator run (pkg/coordinator enforces this with a
// distributed lock); nothing else should write to it directly.
type Incident struct {
	ID               string          `json:"id" db:"id"`
	TenantID         string          `json:"tenant_id" db:"tenant_id"`
	State            IncidentState   `json:"state" db:"state"`
	Severity         Severity        `json:"severity,omitempty" db:"severity"`
	Confidence       float64         `json:"confidence" db:"confidence"`
	Summary          string          `json:"summary,omitempty" db:"summary"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
	Outcome          IncidentOutcome `json:"outcome,omitempty" db:"outcome"`
	TokensUsed       int             `json:"tokens_used" db:"tokens_used"`
	TokenBudget      int             `json:"token_budget" db:"token_budget"`
	EscalationReason string          `json:"escalation_reason,omitempty" db:"escalation_reason"`
	CampaignID       string          `json:"campaign_id,omitempty" db:"campaign_id"`

	// EventID is the originating event, set at creation. Not part of the
	// spec's attribute list but needed to satisfy the idempotent
	// create-on-event-id contract (§4.2, §8 round-trip laws).
	EventID string `json:"event_id,omitempty" db:"event_id"`
}

// TokenBudgetStatus is the result of checking tokens_used against
// token_budget before entering a phase.
type TokenBudgetStatus string

const (
	BudgetOK              TokenBudgetStatus = "OK"
	BudgetWarning         TokenBudgetStatus = "WARNING"
	BudgetForceTransition TokenBudgetStatus = "FORCE_TRANSITION"
	BudgetCritical        TokenBudgetStatus = "CRITICAL"
)

// CheckTokenBudget implements the thresholds from spec §4.5: 0.80 / 0.90
// / 0.95 of TokenBudget.
func (i *Incident) CheckTokenBudget() TokenBudgetStatus {
	if i.TokenBudget <= 0 {
		return BudgetCritical
	}
	ratio := float64(i.TokensUsed) / float64(i.TokenBudget)
	switch {
	case ratio >= 0.95:
		return BudgetCritical
	case ratio >= 0.90:
		return BudgetForceTransition
	case ratio >= 0.80:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// FindingType values recognized structurally by the core. Anything
// else is treated as an opaque agent-defined string.
const (
	FindingTypeDetection        = "detection"
	FindingTypeRouting          = "routing"
	FindingTypeEnrichment       = "enrichment"
	FindingTypeRelatedIncidents = "related_incidents"
	FindingTypeAnalysis         = "analysis"
	FindingTypeProposal         = "proposal"
	FindingTypeOversight        = "oversight"
)

// AgentFinding is an immutable record produced by an agent during an
// incident phase. Findings are append-only; nothing ever updates one
// in place.
type AgentFinding struct {
	ID             string         `json:"id" db:"id"`
	IncidentID     string         `json:"incident_id" db:"incident_id"`
	TenantID       string         `json:"tenant_id" db:"tenant_id"`
	Agent          string         `json:"agent" db:"agent"`
	FindingType    string         `json:"finding_type" db:"finding_type"`
	Confidence     float64        `json:"confidence" db:"confidence"`
	Severity       Severity       `json:"severity,omitempty" db:"severity"`
	Content        map[string]any `json:"content" db:"content"`
	Reasoning      string         `json:"reasoning,omitempty" db:"reasoning"`
	TokensConsumed int            `json:"tokens_consumed" db:"tokens_consumed"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// IncidentEntity indexes an entity seen on an incident so the campaign
// correlator can join across incidents on it later. Populated at
// incident creation from the originating event's entities.
type IncidentEntity struct {
	IncidentID  string `json:"incident_id" db:"incident_id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	EntityType  string `json:"entity_type" db:"entity_type"`
	EntityValue string `json:"entity_value" db:"entity_value"`
}

// IncidentLink is an undirected edge between two incidents that share
// entities. A canonical ordering of (IncidentA, IncidentB) — lexical on
// id — prevents reverse-duplicate rows.
type IncidentLink struct {
	IncidentA      string    `json:"incident_a" db:"incident_a"`
	IncidentB      string    `json:"incident_b" db:"incident_b"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	LinkType       string    `json:"link_type" db:"link_type"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	SharedEntities []Entity  `json:"shared_entities" db:"shared_entities"`
	LinkReason     string    `json:"link_reason,omitempty" db:"link_reason"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CanonicalPair returns (a, b) ordered lexically so that the same pair
// of incidents always hashes/compares to the same link row regardless
// of discovery order.
func CanonicalPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
