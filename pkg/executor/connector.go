// Package executor implements the Action Executor (C7): it orders an
// incident's approved actions into parallel groups honoring declared
// dependencies, invokes the matching Connector for each, records
// terminal status and evidence, and supports incident-level rollback.
package executor

import (
	"context"
	"time"
)

// DefaultCallDeadline bounds a single connector Execute call absent an
// explicit override (spec §4.6).
const DefaultCallDeadline = 30 * time.Second

// Connector is the opaque integration driver the core calls into. Real
// connectors (firewall, identity, EDR, cloud, notification) live
// outside this module; the executor only ever sees this interface.
type Connector interface {
	// Validate checks that parameters are well-formed for this
	// connector before Execute runs. It must not have side effects.
	Validate(ctx context.Context, target string, parameters map[string]any) error

	// Execute performs the action and returns an opaque rollback
	// handle (empty string if the action cannot be rolled back).
	Execute(ctx context.Context, target string, parameters map[string]any) (rollbackHandle string, err error)

	// Rollback reverses a previously executed action identified by the
	// handle Execute returned.
	Rollback(ctx context.Context, handle string) error

	// HealthCheck reports whether the connector's backing integration
	// is reachable.
	HealthCheck(ctx context.Context) error
}

// ConnectorRegistry resolves a Connector by the action_type it serves.
type ConnectorRegistry struct {
	connectors map[string]Connector
}

// NewConnectorRegistry returns an empty registry.
func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{connectors: make(map[string]Connector)}
}

// Register associates actionType with a Connector.
func (r *ConnectorRegistry) Register(actionType string, c Connector) {
	r.connectors[actionType] = c
}

// Get returns the connector registered for actionType, or false.
func (r *ConnectorRegistry) Get(actionType string) (Connector, bool) {
	c, ok := r.connectors[actionType]
	return c, ok
}
