package models

import "errors"

// Sentinel errors shared by every component that reads/writes through
// pkg/storage. Component-specific errors (tenant auth, connector
// validation, ...) live in their own packages and wrap these where the
// underlying cause is a missing or conflicting row.
var (
	// ErrNotFound is returned when a lookup by id/hash finds no row —
	// including rows that exist but belong to a different tenant (see
	// spec §7 TenantIsolationError: treated as 404 for exfiltration
	// resistance, so callers must not distinguish the two cases).
	ErrNotFound = errors.New("models: not found")

	// ErrAlreadyExists signals a conflicting existing row; pkg/api maps
	// it to 409 Conflict. No pkg/storage function returns it: the
	// idempotent inserts there (CreateIncident, for one) report an
	// existing row as a no-op instead.
	ErrAlreadyExists = errors.New("models: already exists")

	// ErrInvalidTransition is returned when a state or status change is
	// not on the legal ladder for its type.
	ErrInvalidTransition = errors.New("models: invalid state transition")

	// ErrInvalidIdentifier is returned when a value destined for a
	// session-scoping parameter (e.g. a tenant id placed into a
	// session variable) does not match the expected opaque-identifier
	// format.
	ErrInvalidIdentifier = errors.New("models: invalid identifier format")
)
