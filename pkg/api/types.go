package api

import "time"

// ErrorResponse is the shape every error response takes, per spec
// §7: "every error response is a short JSON body {error, request_id,
// detail?}; success responses never include error fields."
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
	Detail    string `json:"detail,omitempty"`
}

// EventRequest is the body of POST /events.
type EventRequest struct {
	EventType  string           `json:"event_type"`
	Severity   string           `json:"severity,omitempty"`
	Source     string           `json:"source,omitempty"`
	SourceType string           `json:"source_type,omitempty"`
	Entities   []EntityRequest  `json:"entities,omitempty"`
	RawPayload map[string]any   `json:"raw_payload,omitempty"`
}

// EntityRequest mirrors models.Entity on the wire.
type EntityRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EventBatchRequest is the body of POST /events/batch.
type EventBatchRequest struct {
	Events []EventRequest `json:"events"`
}

// MaxBatchSize bounds POST /events/batch, per spec §6 ("Ingest ≤100 events").
const MaxBatchSize = 100

// EventResponse is returned by POST /events: 201 with the persisted
// event id, plus the promoted incident's id once known (it is never
// known synchronously — promotion happens asynchronously in the
// dispatcher — so IncidentID is always omitted at ingest time today;
// the field is kept for a future synchronous-detection mode).
type EventResponse struct {
	ID         string `json:"id"`
	IncidentID string `json:"incident_id,omitempty"`
}

// EventBatchResponse is returned by POST /events/batch.
type EventBatchResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

// ActionDecisionRequest is the body of POST /incidents/{id}/action.
type ActionDecisionRequest struct {
	ActionID      string         `json:"action_id"`
	ResponseType  string         `json:"response_type"` // approve | reject | modify
	Justification string         `json:"justification,omitempty"`
	Modifications map[string]any `json:"modifications,omitempty"`
}

// ActionDecisionResponse confirms the action's new status.
type ActionDecisionResponse struct {
	ActionID string `json:"action_id"`
	Status   string `json:"status"`
}

// DLQReplayResponse is returned by POST /dlq/{id}/replay.
type DLQReplayResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Time       time.Time `json:"time"`
	Database   string    `json:"database"`
	EventBus   string    `json:"event_bus"`
	QueueDepth int64     `json:"queue_depth,omitempty"`
}

// AgentHealthResponse is returned by GET /health/agents.
type AgentHealthResponse struct {
	Agents     []string       `json:"agents"`
	Dispatcher DispatcherStat `json:"dispatcher"`
}

// DispatcherStat mirrors dispatcher.Stats on the wire.
type DispatcherStat struct {
	Processed int64 `json:"processed"`
	Promoted  int64 `json:"promoted"`
	Dismissed int64 `json:"dismissed"`
}

// CampaignStatsResponse is returned by GET /campaigns/stats.
type CampaignStatsResponse struct {
	TotalLinks     int64 `json:"total_links"`
	TotalCampaigns int64 `json:"total_campaigns"`
	LinkedEntities int64 `json:"linked_entities"`
}
