package models

import "time"

// IncidentFilter narrows list_incidents(); zero values mean "no filter"
// for that field.
type IncidentFilter struct {
	State    IncidentState
	Severity Severity
	Limit    int
	Offset   int
}

// RelatedIncidents is the result of find_related_incidents(): the
// incidents sharing entities with the subject incident, keyed by the
// incident id, plus the campaign scoring computed over them.
type RelatedIncidents struct {
	Related        []Incident
	SharedEntities map[string][]Entity // related incident id -> shared entities
	CampaignScore  float64
	IsCampaign     bool
}

// IncidentSummary is the condensed projection returned by
// get_entity_timeline(): enough to render a timeline entry without
// pulling the full incident + findings.
type IncidentSummary struct {
	IncidentID string    `json:"incident_id"`
	TenantID   string    `json:"tenant_id"`
	State      IncidentState `json:"state"`
	Severity   Severity  `json:"severity,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
