package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// CreateEvent persists an immutable event row, tenant-scoped.
func (s *Store) CreateEvent(ctx context.Context, tenantID string, ev models.Event) error {
	entities, err := json.Marshal(ev.Entities)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev.RawPayload)
	if err != nil {
		return err
	}
	return s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO events (id, tenant_id, timestamp, source, source_type, event_type, severity, entities, raw_payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb)`,
			ev.ID, tenantID, ev.Timestamp, ev.Source, ev.SourceType, ev.EventType, ev.Severity, entities, payload)
		return err
	})
}

// GetEvent returns a single event, tenant-scoped.
func (s *Store) GetEvent(ctx context.Context, tenantID, id string) (*models.Event, error) {
	var ev models.Event
	var entities, payload []byte
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, tenant_id, timestamp, source, source_type, event_type, severity, entities, raw_payload
			FROM events WHERE id = $1`, id)
		return row.Scan(&ev.ID, &ev.TenantID, &ev.Timestamp, &ev.Source, &ev.SourceType, &ev.EventType, &ev.Severity, &entities, &payload)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(entities, &ev.Entities)
	_ = json.Unmarshal(payload, &ev.RawPayload)
	return &ev, nil
}
