package models

import "time"

// Severity is the shared severity scale used by Events, Incidents and
// AgentFindings.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Entity is a typed identifier extracted from an event (an IP, a
// username, a hostname, ...). Incidents index their entities so the
// campaign correlator can join on them later.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Event is an immutable ingress record. Once published to the event
// bus it is never mutated.
type Event struct {
	ID         string         `json:"id" db:"id"`
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	Timestamp  time.Time      `json:"timestamp" db:"timestamp"`
	Source     string         `json:"source" db:"source"`
	SourceType string         `json:"source_type" db:"source_type"`
	EventType  string         `json:"event_type" db:"event_type"`
	Severity   Severity       `json:"severity" db:"severity"`
	Entities   []Entity       `json:"entities" db:"entities"`
	RawPayload map[string]any `json:"raw_payload" db:"raw_payload"`
}
