package models

import "time"

// AuditLogEntry is an insert-only tamper-evident record. Storage
// policy rejects updates and deletes against this table; Signature
// lets a verifier detect post-hoc edits without trusting the database.
type AuditLogEntry struct {
	ID           string         `json:"id" db:"id"`
	TenantID     string         `json:"tenant_id" db:"tenant_id"`
	Timestamp    time.Time      `json:"timestamp" db:"timestamp"`
	Actor        string         `json:"actor" db:"actor"`
	Action       string         `json:"action" db:"action"`
	ResourceType string         `json:"resource_type" db:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty" db:"resource_id"`
	Details      map[string]any `json:"details,omitempty" db:"details"`
	IPAddress    string         `json:"ip_address,omitempty" db:"ip_address"`
	Signature    string         `json:"signature" db:"signature"`
}
