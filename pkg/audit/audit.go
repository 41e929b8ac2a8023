// Package audit implements the tamper-evident audit trail (§3's
// AuditLogEntry): every security-relevant action a human or the API
// layer takes is signed with an HMAC over its canonical JSON
// representation before it is handed to storage, which enforces the
// insert-only policy at the row level.
//
// Grounded on original_source/hornet/utils/security.py's AuditLogger
// (compute-signature-then-log shape, log_auth_event/log_config_change
// helper methods), with the signature scheme reusing
// pkg/executor.SignHMAC/CanonicalJSON rather than a second HMAC
// implementation.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hornet-sec/hornet/pkg/executor"
	"github.com/hornet-sec/hornet/pkg/models"
)

// Writer is the storage-side dependency: InsertAuditLogEntry on
// pkg/storage.Store satisfies it.
type Writer interface {
	InsertAuditLogEntry(ctx context.Context, e models.AuditLogEntry) error
}

// Logger signs and persists AuditLogEntry rows. The secret is a
// process-level value (distinct from the edge-agent HMAC secret and
// the webhook connector's per-target secret) never exposed outside
// this package.
type Logger struct {
	store  Writer
	secret string
}

// New builds a Logger. secret should come from an environment
// variable set at process startup, never from a config file.
func New(store Writer, secret string) *Logger {
	return &Logger{store: store, secret: secret}
}

// Log signs and persists one audit entry. Failures are logged but
// never returned to the caller: an audit write must not block or fail
// the operation it is recording (grounded on the original's "log to
// structured logger, then best-effort persist" split).
func (l *Logger) Log(ctx context.Context, tenantID, actor, action, resourceType, resourceID string, details map[string]any, ipAddress string) {
	if l == nil || l.store == nil {
		return
	}
	entry := models.AuditLogEntry{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Timestamp:    time.Now().UTC(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    ipAddress,
	}
	entry.Signature = l.sign(entry)

	if err := l.store.InsertAuditLogEntry(ctx, entry); err != nil {
		slog.Error("audit log write failed", "tenant_id", tenantID, "actor", actor, "action", action, "error", err)
	}
}

// sign computes the HMAC over the entry's canonical JSON
// representation, excluding the signature field itself.
func (l *Logger) sign(e models.AuditLogEntry) string {
	fields := map[string]any{
		"id":            e.ID,
		"tenant_id":     e.TenantID,
		"timestamp":     e.Timestamp.Format(time.RFC3339Nano),
		"actor":         e.Actor,
		"action":        e.Action,
		"resource_type": e.ResourceType,
		"resource_id":   e.ResourceID,
		"details":       e.Details,
		"ip_address":    e.IPAddress,
	}
	canonical, err := executor.CanonicalJSON(fields)
	if err != nil {
		slog.Error("audit log canonicalization failed", "error", err)
		return ""
	}
	return executor.SignHMAC(l.secret, canonical)
}

// Verify recomputes an entry's signature and reports whether it
// matches, detecting any post-hoc edit to a row the database itself
// should already have rejected at the policy level.
func (l *Logger) Verify(e models.AuditLogEntry) bool {
	want := l.sign(e)
	return want != "" && want == e.Signature
}
