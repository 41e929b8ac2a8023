package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// FindIncidentsByEntity returns incidents for tenantID whose entity
// index contains (entityType, entityValue), created within the last
// minutesBack minutes, optionally excluding one incident id.
func (s *Store) FindIncidentsByEntity(ctx context.Context, tenantID, entityType, entityValue string, minutesBack int, exclude string) ([]models.Incident, error) {
	var out []models.Incident
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT i.id, i.tenant_id, COALESCE(i.event_id::text, ''), i.state, COALESCE(i.severity, ''), i.confidence,
			       COALESCE(i.summary, ''), i.created_at, i.updated_at, i.closed_at, COALESCE(i.outcome, ''),
			       i.tokens_used, i.token_budget, COALESCE(i.escalation_reason, ''), COALESCE(i.campaign_id::text, '')
			FROM incidents i
			JOIN incident_entities e ON e.incident_id = i.id
			WHERE e.entity_type = $1 AND e.entity_value = $2
			  AND i.created_at >= now() - ($3 || ' minutes')::interval
			  AND ($4 = '' OR i.id != $4)
			ORDER BY i.created_at DESC`,
			entityType, entityValue, minutesBack, exclude)
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

// GetIncidentEntities returns the entities indexed for an incident.
func (s *Store) GetIncidentEntities(ctx context.Context, tenantID, incidentID string) ([]models.Entity, error) {
	var out []models.Entity
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT entity_type, entity_value FROM incident_entities WHERE incident_id = $1`, incidentID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e models.Entity
			if err := rows.Scan(&e.Type, &e.Value); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// LinkIncidents idempotently inserts an undirected IncidentLink. The
// canonical ordering (lexically smaller id as incident_a) is enforced
// here so a reverse-order call for the same pair is a no-op, matching
// the §8 idempotence law.
func (s *Store) LinkIncidents(ctx context.Context, tenantID string, a, b, linkType string, confidence float64, shared []models.Entity, reason string) error {
	ia, ib := models.CanonicalPair(a, b)
	sharedJSON, err := json.Marshal(shared)
	if err != nil {
		return err
	}
	return s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO incident_links (incident_a, incident_b, tenant_id, link_type, confidence, shared_entities, link_reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, now())
			ON CONFLICT (incident_a, incident_b) DO NOTHING`,
			ia, ib, tenantID, linkType, confidence, sharedJSON, reason)
		return err
	})
}

// CreateCampaign assigns a fresh campaign id to every incident in ids
// and links every pair, returning the new campaign id. Used when the
// correlator's stronger threshold (related_count >= 3 && score >= 0.8)
// is met.
func (s *Store) CreateCampaign(ctx context.Context, tenantID string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	campaignID := newUUID()
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(ctx, `UPDATE incidents SET campaign_id = $2, updated_at = now() WHERE id = $1`, id, campaignID); err != nil {
				return err
			}
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				ia, ib := models.CanonicalPair(ids[i], ids[j])
				if _, err := tx.Exec(ctx, `
					INSERT INTO incident_links (incident_a, incident_b, tenant_id, link_type, confidence, shared_entities, link_reason, created_at)
					VALUES ($1, $2, $3, 'campaign', 1.0, '[]'::jsonb, 'campaign membership', now())
					ON CONFLICT (incident_a, incident_b) DO NOTHING`, ia, ib, tenantID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return campaignID, nil
}

// MaxCampaignDepth bounds get_campaign_incidents' traversal (spec §4.2,
// §9: "bounded to a finite depth").
const MaxCampaignDepth = 10

// GetCampaignIncidents returns every incident transitively linked to
// incidentID, traversing the link graph breadth-first up to
// MaxCampaignDepth hops. The canonical pair ordering already prevents
// duplicate reverse edges; a visited-set here additionally prevents
// revisiting a node across a cycle formed over time.
func (s *Store) GetCampaignIncidents(ctx context.Context, tenantID, incidentID string) ([]models.Incident, error) {
	visited := map[string]bool{incidentID: true}
	frontier := []string{incidentID}
	var result []string

	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		for depth := 0; depth < MaxCampaignDepth && len(frontier) > 0; depth++ {
			rows, err := tx.Query(ctx, `
				SELECT incident_a, incident_b FROM incident_links
				WHERE incident_a = ANY($1) OR incident_b = ANY($1)`, frontier)
			if err != nil {
				return err
			}
			var next []string
			for rows.Next() {
				var a, b string
				if err := rows.Scan(&a, &b); err != nil {
					rows.Close()
					return err
				}
				for _, id := range []string{a, b} {
					if !visited[id] {
						visited[id] = true
						next = append(next, id)
						result = append(result, id)
					}
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}
			rows.Close()
			frontier = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []models.Incident
	for _, id := range result {
		inc, err := s.getIncidentNoScope(ctx, tenantID, id)
		if err != nil {
			continue
		}
		out = append(out, *inc)
	}
	return out, nil
}

func (s *Store) getIncidentNoScope(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	return s.GetIncident(ctx, tenantID, id)
}

// GetCampaignGraph returns every link created in the last hoursBack
// hours, for rendering the dashboard's campaign graph view.
func (s *Store) GetCampaignGraph(ctx context.Context, tenantID string, hoursBack int) ([]models.IncidentLink, error) {
	var out []models.IncidentLink
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT incident_a, incident_b, tenant_id, link_type, confidence, shared_entities, COALESCE(link_reason, ''), created_at
			FROM incident_links
			WHERE created_at >= now() - ($1 || ' hours')::interval
			ORDER BY created_at DESC`, hoursBack)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var l models.IncidentLink
			var sharedJSON []byte
			if err := rows.Scan(&l.IncidentA, &l.IncidentB, &l.TenantID, &l.LinkType, &l.Confidence, &sharedJSON, &l.LinkReason, &l.CreatedAt); err != nil {
				return err
			}
			if err := json.Unmarshal(sharedJSON, &l.SharedEntities); err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	return out, err
}

// CampaignStats summarizes the entity-correlation index for a tenant.
type CampaignStats struct {
	TotalLinks     int64
	TotalCampaigns int64
	LinkedEntities int64
}

// GetCampaignStats aggregates incident_links and incident_entities for
// the /campaigns/stats endpoint.
func (s *Store) GetCampaignStats(ctx context.Context, tenantID string) (*CampaignStats, error) {
	var stats CampaignStats
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM incident_links`).Scan(&stats.TotalLinks); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT count(DISTINCT campaign_id) FROM incidents WHERE campaign_id IS NOT NULL AND campaign_id != ''`).Scan(&stats.TotalCampaigns); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT count(DISTINCT (entity_type, entity_value)) FROM incident_entities`).Scan(&stats.LinkedEntities); err != nil {
			return err
		}
		return nil
	})
	return &stats, err
}

// GetEntityTimeline returns a condensed summary of every incident
// touching (entityType, entityValue) within the last hoursBack hours,
// newest first.
func (s *Store) GetEntityTimeline(ctx context.Context, tenantID, entityType, entityValue string, hoursBack int) ([]models.IncidentSummary, error) {
	var out []models.IncidentSummary
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT i.id, i.tenant_id, i.state, COALESCE(i.severity, ''), i.confidence, i.created_at
			FROM incidents i
			JOIN incident_entities e ON e.incident_id = i.id
			WHERE e.entity_type = $1 AND e.entity_value = $2
			  AND i.created_at >= now() - ($3 || ' hours')::interval
			ORDER BY i.created_at DESC`, entityType, entityValue, hoursBack)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sm models.IncidentSummary
			if err := rows.Scan(&sm.IncidentID, &sm.TenantID, &sm.State, &sm.Severity, &sm.Confidence, &sm.CreatedAt); err != nil {
				return err
			}
			out = append(out, sm)
		}
		return rows.Err()
	})
	return out, err
}
