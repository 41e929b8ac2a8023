package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// CreateAction inserts a proposed/approved action row.
func (s *Store) CreateAction(ctx context.Context, a models.Action) error {
	params, err := json.Marshal(contentOrEmpty(a.Parameters))
	if err != nil {
		return err
	}
	return s.withTenantTx(ctx, a.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO actions (id, incident_id, tenant_id, action_type, target, parameters, risk_level, status, "order", parallel_group, dependencies, justification, proposed_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, now())`,
			a.ID, a.IncidentID, a.TenantID, a.ActionType, a.Target, params, string(a.RiskLevel), string(a.Status), a.Order, a.ParallelGroup, a.Dependencies, a.Justification)
		return err
	})
}

// UpdateActionStatus moves an action along its legal ladder, rejecting
// (with models.ErrInvalidTransition) any transition not permitted by
// models.CanTransition. approved_at is stamped on a move to APPROVED
// and executed_at on a move to EXECUTING; a terminal status stamps no
// timestamp.
func (s *Store) UpdateActionStatus(ctx context.Context, tenantID, id string, to models.ActionStatus, errMsg, rollbackHandle string) error {
	return s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var from models.ActionStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM actions WHERE id = $1`, id).Scan(&from); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return err
		}
		if !models.CanTransition(from, to) {
			return models.ErrInvalidTransition
		}

		var setApproved, setExecuted bool
		switch to {
		case models.ActionApproved:
			setApproved = true
		case models.ActionExecuting:
			setExecuted = true
		}

		_, err := tx.Exec(ctx, `
			UPDATE actions SET
				status          = $2,
				error           = NULLIF($3, ''),
				rollback_handle = CASE WHEN $4 = '' THEN rollback_handle ELSE $4 END,
				approved_at     = CASE WHEN $5 THEN now() ELSE approved_at END,
				executed_at     = CASE WHEN $6 THEN now() ELSE executed_at END
			WHERE id = $1`,
			id, string(to), errMsg, rollbackHandle, setApproved, setExecuted)
		return err
	})
}

// ListActionsForIncident returns every action for an incident ordered
// by parallel group then order, the sequence the executor walks.
func (s *Store) ListActionsForIncident(ctx context.Context, tenantID, incidentID string) ([]models.Action, error) {
	var out []models.Action
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, incident_id, tenant_id, action_type, target, parameters, risk_level, status, "order", parallel_group,
			       dependencies, COALESCE(rollback_handle, ''), COALESCE(justification, ''), proposed_at, approved_at, executed_at, COALESCE(error, '')
			FROM actions WHERE incident_id = $1 ORDER BY parallel_group ASC, "order" ASC`, incidentID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a models.Action
			var params []byte
			if err := rows.Scan(&a.ID, &a.IncidentID, &a.TenantID, &a.ActionType, &a.Target, &params, &a.RiskLevel, &a.Status,
				&a.Order, &a.ParallelGroup, &a.Dependencies, &a.RollbackHandle, &a.Justification, &a.ProposedAt, &a.ApprovedAt, &a.ExecutedAt, &a.Error); err != nil {
				return err
			}
			a.Parameters = unmarshalMap(params)
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}
