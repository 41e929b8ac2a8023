// Package agent defines the opaque worker-persona contract the
// dispatcher and coordinator call into, plus the registry that holds
// named instances, and a set of deterministic stub implementations
// used as the bundled default squad and in tests. Real detection,
// analysis and response logic lives outside this module; an Agent here
// is nothing more than process(context) -> AgentOutput with a declared
// token cost.
package agent

import (
	"context"
	"time"
)

// OutputType classifies what an AgentOutput represents, so callers
// that do need to inspect specific agents' content (the analyst
// verdict, the oversight decision, the responder proposal) know which
// shape to expect without the Coordinator depending on agent internals
// in general.
type OutputType string

const (
	OutputTypeDetection OutputType = "detection"
	OutputTypeRouting   OutputType = "routing"
	OutputTypeEnrich    OutputType = "enrichment"
	OutputTypeAnalysis  OutputType = "analysis"
	OutputTypeProposal  OutputType = "proposal"
	OutputTypeOversight OutputType = "oversight"
)

// AgentOutput is the uniform return value of every agent invocation.
// Content is an opaque map except for the three output types the
// Coordinator reads structured fields from (analysis, proposal,
// oversight) — see pkg/coordinator for the accessor helpers that
// decode those shapes.
type AgentOutput struct {
	AgentName  string
	OutputType OutputType
	Confidence float64
	Reasoning  string
	Content    map[string]any
	TokensUsed int
}

// Context carries everything an agent invocation needs: the
// provisional or real incident id, the triggering event, the entities
// extracted from it, and the findings accumulated so far in this run.
// It is read-only from the agent's perspective — agents never write to
// storage directly.
type Context struct {
	TenantID     string
	IncidentID   string
	EventID      string
	EventType    string
	Entities     []Entity
	RawPayload   map[string]any
	PriorFindings []AgentOutput
}

// Entity mirrors models.Entity without importing pkg/models, keeping
// this package's dependency surface to the standard library plus
// whatever a concrete agent implementation chooses to add.
type Entity struct {
	Type  string
	Value string
}

// Agent is the contract every detection-squad member, enrichment
// agent, analyst, responder, oversight and router implements.
// Execute must respect ctx's deadline and return promptly on
// cancellation; the dispatcher and coordinator treat a context error
// from Execute as a null result for that agent, not a batch failure.
type Agent interface {
	Name() string
	Execute(ctx context.Context, ac Context) (AgentOutput, error)
}

// DefaultCallDeadline is a per-invocation deadline for agent calls. No
// caller in this module uses it: the dispatcher applies its own
// PerAgentDeadline (also 10s) to detection squad calls.
const DefaultCallDeadline = 10 * time.Second
