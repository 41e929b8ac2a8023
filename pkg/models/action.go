package models

import "time"

// RiskLevel is a coarse classification a responder agent attaches to a
// proposed action; the core never interprets it beyond display and
// audit purposes.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ActionStatus is the legal ladder an Action moves through. Transitions
// are monotonic; there is no return from a terminal state.
type ActionStatus string

const (
	ActionProposed   ActionStatus = "PROPOSED"
	ActionApproved   ActionStatus = "APPROVED"
	ActionRejected   ActionStatus = "REJECTED"
	ActionVetoed     ActionStatus = "VETOED"
	ActionExecuting  ActionStatus = "EXECUTING"
	ActionCompleted  ActionStatus = "COMPLETED"
	ActionFailed     ActionStatus = "FAILED"
	ActionRolledBack ActionStatus = "ROLLED_BACK"
)

// terminalActionStates have no legal outgoing transition except the
// explicit rollback operation.
var terminalActionStates = map[ActionStatus]bool{
	ActionRejected:   true,
	ActionVetoed:     true,
	ActionCompleted:  true,
	ActionFailed:     true,
	ActionRolledBack: true,
}

// IsTerminal reports whether status has no further forward transition.
func (s ActionStatus) IsTerminal() bool {
	return terminalActionStates[s]
}

// Action is one step of an ExecutionPlan: a concrete, opaque operation
// against a Connector, with a declared risk level and an optional
// rollback handle issued once the connector executes it.
type Action struct {
	ID              string         `json:"id" db:"id"`
	IncidentID      string         `json:"incident_id" db:"incident_id"`
	TenantID        string         `json:"tenant_id" db:"tenant_id"`
	ActionType      string         `json:"action_type" db:"action_type"`
	Target          string         `json:"target" db:"target"`
	Parameters      map[string]any `json:"parameters" db:"parameters"`
	RiskLevel       RiskLevel      `json:"risk_level" db:"risk_level"`
	Status          ActionStatus   `json:"status" db:"status"`
	Order           int            `json:"order" db:"order"`
	ParallelGroup   int            `json:"parallel_group" db:"parallel_group"`
	Dependencies    []string       `json:"dependencies,omitempty" db:"dependencies"`
	RollbackHandle  string         `json:"rollback_handle,omitempty" db:"rollback_handle"`
	Justification   string         `json:"justification,omitempty" db:"justification"`
	ProposedAt      time.Time      `json:"proposed_at" db:"proposed_at"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	ExecutedAt      *time.Time     `json:"executed_at,omitempty" db:"executed_at"`
	Error           string         `json:"error,omitempty" db:"error"`
}

// legalActionTransitions mirrors §4.6's ladder:
// PROPOSED -> APPROVED|REJECTED|VETOED
// APPROVED -> EXECUTING
// EXECUTING -> COMPLETED|FAILED
// COMPLETED -> ROLLED_BACK (explicit rollback only)
var legalActionTransitions = map[ActionStatus]map[ActionStatus]bool{
	ActionProposed:  {ActionApproved: true, ActionRejected: true, ActionVetoed: true},
	ActionApproved:  {ActionExecuting: true},
	ActionExecuting: {ActionCompleted: true, ActionFailed: true},
	ActionCompleted: {ActionRolledBack: true},
}

// CanTransition reports whether moving from to is on the legal ladder.
func CanTransition(from, to ActionStatus) bool {
	return legalActionTransitions[from][to]
}
