package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// InsertAuditLogEntry writes an already-signed entry. Storage policy
// (no UPDATE/DELETE RLS grant on audit_log_entries, see migrations)
// makes this table insert-only at the database level, not merely by
// convention.
func (s *Store) InsertAuditLogEntry(ctx context.Context, e models.AuditLogEntry) error {
	details, err := json.Marshal(contentOrEmpty(e.Details))
	if err != nil {
		return err
	}
	return s.withTenantTx(ctx, e.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO audit_log_entries (id, tenant_id, timestamp, actor, action, resource_type, resource_id, details, ip_address, signature)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)`,
			e.ID, e.TenantID, e.Timestamp, e.Actor, e.Action, e.ResourceType, nullableString(e.ResourceID), details, nullableString(e.IPAddress), e.Signature)
		return err
	})
}

// ListAuditLog returns recent audit entries for a tenant, newest first.
func (s *Store) ListAuditLog(ctx context.Context, tenantID string, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []models.AuditLogEntry
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, timestamp, actor, action, resource_type, COALESCE(resource_id, ''), details, COALESCE(ip_address, ''), signature
			FROM audit_log_entries WHERE tenant_id = $1 ORDER BY timestamp DESC LIMIT $2`, tenantID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e models.AuditLogEntry
			var details []byte
			if err := rows.Scan(&e.ID, &e.TenantID, &e.Timestamp, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &details, &e.IPAddress, &e.Signature); err != nil {
				return err
			}
			e.Details = unmarshalMap(details)
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}
