package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hornet-sec/hornet/pkg/models"
)

// CreateIncident inserts a new incident and its entity index in one
// transaction. It is idempotent on id: if an incident with this id
// already exists, it returns (false, nil) rather than an error — the
// spec's "no-op returning ok=false" contract.
func (s *Store) CreateIncident(ctx context.Context, inc models.Incident, entities []models.Entity) (bool, error) {
	created := false
	err := s.withTenantTx(ctx, inc.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO incidents (id, tenant_id, event_id, state, severity, confidence, tokens_used, token_budget, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7, now(), now())
			ON CONFLICT (id) DO NOTHING`,
			inc.ID, inc.TenantID, nullableString(inc.EventID), string(inc.State), nullableSeverity(inc.Severity), inc.Confidence, tokenBudgetOrDefault(inc.TokenBudget))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil // already exists; created stays false
		}
		created = true

		for _, e := range entities {
			if _, err := tx.Exec(ctx, `
				INSERT INTO incident_entities (incident_id, tenant_id, entity_type, entity_value)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING`, inc.ID, inc.TenantID, e.Type, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func tokenBudgetOrDefault(b int) int {
	if b <= 0 {
		return models.DefaultTokenBudget
	}
	return b
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableSeverity(s models.Severity) any {
	if s == "" {
		return nil
	}
	return string(s)
}

// IncidentUpdate carries the optional fields update_incident() may
// change; zero-value fields (empty string / nil / zero) are left
// untouched, except where a pointer explicitly signals "set this".
type IncidentUpdate struct {
	State            *models.IncidentState
	Confidence       *float64
	TokensUsed       *int
	Summary          *string
	CampaignID       *string
	Severity         *models.Severity
	Outcome          *models.IncidentOutcome
	EscalationReason *string
	Closed           bool
}

// UpdateIncident applies a partial update and always advances
// updated_at. When Closed is set, closed_at is stamped exactly once
// (only if it was previously null).
func (s *Store) UpdateIncident(ctx context.Context, tenantID, id string, u IncidentUpdate) error {
	return s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE incidents SET
				state             = COALESCE($3, state),
				confidence        = COALESCE($4, confidence),
				tokens_used       = COALESCE($5, tokens_used),
				summary           = COALESCE($6, summary),
				campaign_id       = COALESCE($7, campaign_id),
				severity          = COALESCE($8, severity),
				outcome           = COALESCE($9, outcome),
				escalation_reason = COALESCE($10, escalation_reason),
				closed_at         = CASE WHEN $11 AND closed_at IS NULL THEN now() ELSE closed_at END,
				updated_at        = now()
			WHERE id = $1 AND tenant_id = $2`,
			id, tenantID,
			stateOrNil(u.State), u.Confidence, u.TokensUsed, u.Summary, u.CampaignID,
			severityOrNil(u.Severity), outcomeOrNil(u.Outcome), u.EscalationReason, u.Closed)
		return err
	})
}

func stateOrNil(s *models.IncidentState) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
func severityOrNil(s *models.Severity) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
func outcomeOrNil(o *models.IncidentOutcome) any {
	if o == nil {
		return nil
	}
	return string(*o)
}

// GetIncident returns a single incident, tenant-scoped. A cross-tenant
// id, or an unknown one, both produce ErrNotFound — the caller (the
// HTTP layer) maps that to 404 without distinguishing the two cases,
// per spec §7's TenantIsolationError handling.
func (s *Store) GetIncident(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	var inc models.Incident
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		return scanIncident(tx.QueryRow(ctx, `
			SELECT id, tenant_id, COALESCE(event_id::text, ''), state, COALESCE(severity, ''), confidence,
			       COALESCE(summary, ''), created_at, updated_at, closed_at, COALESCE(outcome, ''),
			       tokens_used, token_budget, COALESCE(escalation_reason, ''), COALESCE(campaign_id::text, '')
			FROM incidents WHERE id = $1`, id), &inc)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &inc, nil
}

func scanIncident(row pgx.Row, inc *models.Incident) error {
	return row.Scan(&inc.ID, &inc.TenantID, &inc.EventID, &inc.State, &inc.Severity, &inc.Confidence,
		&inc.Summary, &inc.CreatedAt, &inc.UpdatedAt, &inc.ClosedAt, &inc.Outcome,
		&inc.TokensUsed, &inc.TokenBudget, &inc.EscalationReason, &inc.CampaignID)
}

// ListIncidents returns incidents for a tenant matching filter,
// newest first.
func (s *Store) ListIncidents(ctx context.Context, tenantID string, filter models.IncidentFilter) ([]models.Incident, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []models.Incident
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, COALESCE(event_id::text, ''), state, COALESCE(severity, ''), confidence,
			       COALESCE(summary, ''), created_at, updated_at, closed_at, COALESCE(outcome, ''),
			       tokens_used, token_budget, COALESCE(escalation_reason, ''), COALESCE(campaign_id::text, '')
			FROM incidents
			WHERE ($1 = '' OR state = $1) AND ($2 = '' OR severity = $2)
			ORDER BY created_at DESC
			LIMIT $3 OFFSET $4`,
			string(filter.State), string(filter.Severity), limit, filter.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var inc models.Incident
			if err := scanIncident(rows, &inc); err != nil {
				return err
			}
			out = append(out, inc)
		}
		return rows.Err()
	})
	return out, err
}

// AddFinding appends an immutable finding to an incident.
func (s *Store) AddFinding(ctx context.Context, f models.AgentFinding) error {
	content, err := json.Marshal(contentOrEmpty(f.Content))
	if err != nil {
		return err
	}
	return s.withTenantTx(ctx, f.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO agent_findings (id, incident_id, tenant_id, agent, finding_type, confidence, severity, content, reasoning, tokens_consumed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, now())`,
			f.ID, f.IncidentID, f.TenantID, f.Agent, f.FindingType, f.Confidence, nullableSeverity(f.Severity), content, f.Reasoning, f.TokensConsumed)
		return err
	})
}

func contentOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ListFindings returns every finding for an incident, oldest first.
func (s *Store) ListFindings(ctx context.Context, tenantID, incidentID string) ([]models.AgentFinding, error) {
	var out []models.AgentFinding
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, incident_id, tenant_id, agent, finding_type, confidence, COALESCE(severity, ''), content, COALESCE(reasoning, ''), tokens_consumed, created_at
			FROM agent_findings WHERE incident_id = $1 ORDER BY created_at ASC`, incidentID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f models.AgentFinding
			var content []byte
			if err := rows.Scan(&f.ID, &f.IncidentID, &f.TenantID, &f.Agent, &f.FindingType, &f.Confidence, &f.Severity, &content, &f.Reasoning, &f.TokensConsumed, &f.CreatedAt); err != nil {
				return err
			}
			f.Content = unmarshalMap(content)
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

func unmarshalMap(b []byte) map[string]any {
	// best-effort; callers receive an empty map rather than a panic on
	// malformed content.
	m := map[string]any{}
	if len(b) == 0 {
		return m
	}
	_ = json.Unmarshal(b, &m)
	return m
}

// ListStaleIncidents returns non-terminal incidents across all tenants
// whose updated_at is older than olderThan — candidates for the
// periodic dispatcher-timeout-scan job to force-close as a safety net
// for a coordinator run that crashed after its distributed lock
// expired. Intentionally cross-tenant, like DueRetryJobs.
func (s *Store) ListStaleIncidents(ctx context.Context, olderThan time.Duration) ([]models.Incident, error) {
	var out []models.Incident
	err := s.withSystemTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, COALESCE(event_id::text, ''), state, COALESCE(severity, ''), confidence,
			       COALESCE(summary, ''), created_at, updated_at, closed_at, COALESCE(outcome, ''),
			       tokens_used, token_budget, COALESCE(escalation_reason, ''), COALESCE(campaign_id::text, '')
			FROM incidents
			WHERE state NOT IN ('CLOSED', 'ESCALATED', 'ERROR')
			  AND updated_at < now() - ($1 || ' seconds')::interval`,
			int64(olderThan.Seconds()))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var inc models.Incident
			if err := scanIncident(rows, &inc); err != nil {
				return err
			}
			out = append(out, inc)
		}
		return rows.Err()
	})
	return out, err
}

// Health reports pool connectivity and usage, mirroring the teacher's
// database.Health shape.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"response_time_ms"`
	AcquiredConns   int32         `json:"acquired_conns"`
	IdleConns       int32         `json:"idle_conns"`
	MaxConns        int32         `json:"max_conns"`
}

func (s *Store) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}
	stat := s.pool.Stat()
	return healthFromStat(start, stat), nil
}

func healthFromStat(start time.Time, stat *pgxpool.Stat) *HealthStatus {
	return &HealthStatus{
		Status:        "healthy",
		ResponseTime:  time.Since(start),
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		MaxConns:      stat.MaxConns(),
	}
}
