package config

import "time"

// RetentionConfig describes data retention windows. Load fills it in,
// but no component reads it: DLQ aging takes its window from the Jobs
// section, and no event or audit-log cleanup job exists.
type RetentionConfig struct {
	// EventTTL is the maximum age of a raw Event row before deletion,
	// independent of whether it produced an incident.
	EventTTL time.Duration `yaml:"event_ttl"`

	// AuditLogRetentionDays is how long signed audit log entries are
	// kept before purge; zero means retain indefinitely (the audit
	// trail is insert-only and tamper-evident, so indefinite retention
	// is the common operator choice).
	AuditLogRetentionDays int `yaml:"audit_log_retention_days"`

	// DLQRetention has the same default as pkg/jobs.Config.DLQRetention,
	// which is the value the DLQ-aging job uses; this field is not
	// passed to it.
	DLQRetention time.Duration `yaml:"dlq_retention"`

	// CleanupInterval is the cadence for an event/audit cleanup sweep;
	// no such sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		EventTTL:              90 * 24 * time.Hour,
		AuditLogRetentionDays: 0,
		DLQRetention:          30 * 24 * time.Hour,
		CleanupInterval:       12 * time.Hour,
	}
}
