// Package campaign implements the Campaign Correlator (C9): given an
// incident and its extracted entities, it looks for other recent
// incidents in the same tenant sharing those entities, scores the
// relationship, and — once confirmed — links and optionally groups the
// incidents into a campaign. It satisfies pkg/coordinator's
// CampaignCorrelator interface and is invoked from the ENRICHMENT
// phase; a correlation failure degrades to a recorded finding, never
// an incident-level error.
package campaign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
)

// Store is the subset of pkg/storage the correlator depends on,
// declared here to keep this package's import graph pointing only at
// pkg/models and the standard library.
type Store interface {
	GetIncidentEntities(ctx context.Context, tenantID, incidentID string) ([]models.Entity, error)
	FindIncidentsByEntity(ctx context.Context, tenantID, entityType, entityValue string, minutesBack int, exclude string) ([]models.Incident, error)
	LinkIncidents(ctx context.Context, tenantID string, a, b, linkType string, confidence float64, shared []models.Entity, reason string) error
	CreateCampaign(ctx context.Context, tenantID string, ids []string) (string, error)
}

// Defaults per spec §4.7.
const (
	DefaultMinutesBack = 60

	linkThresholdScore     = 0.5
	linkThresholdCount     = 3
	campaignThresholdScore = 0.8
	campaignThresholdCount = 3
)

// Correlator is the C9 implementation.
type Correlator struct {
	store       Store
	minutesBack int
	log         *slog.Logger
}

// New returns a Correlator reading up to minutesBack minutes of
// history; minutesBack <= 0 selects DefaultMinutesBack.
func New(store Store, minutesBack int) *Correlator {
	if minutesBack <= 0 {
		minutesBack = DefaultMinutesBack
	}
	return &Correlator{store: store, minutesBack: minutesBack, log: slog.Default().With("component", "campaign")}
}

// related aggregates, for one other incident sharing at least one
// entity with the subject, every entity it shares.
type related struct {
	incident models.Incident
	shared   []models.Entity
}

// Correlate implements pkg/coordinator.CampaignCorrelator.
func (c *Correlator) Correlate(ctx context.Context, tenantID, incidentID string) error {
	entities, err := c.store.GetIncidentEntities(ctx, tenantID, incidentID)
	if err != nil {
		return fmt.Errorf("campaign: load entities: %w", err)
	}
	if len(entities) == 0 {
		return nil
	}

	byIncident := make(map[string]*related)
	entityTypeSeen := make(map[string]bool)
	occurrences := make(map[string]int) // incident id -> shared entity count

	for _, e := range entities {
		entityTypeSeen[e.Type] = true
		found, err := c.store.FindIncidentsByEntity(ctx, tenantID, e.Type, e.Value, c.minutesBack, incidentID)
		if err != nil {
			return fmt.Errorf("campaign: find by entity %s=%s: %w", e.Type, e.Value, err)
		}
		for _, inc := range found {
			r, ok := byIncident[inc.ID]
			if !ok {
				r = &related{incident: inc}
				byIncident[inc.ID] = r
			}
			r.shared = append(r.shared, e)
			occurrences[inc.ID]++
		}
	}

	if len(byIncident) == 0 {
		return nil
	}

	relatedCount := len(byIncident)

	distinctTypes := map[string]bool{}
	maxOccurrences := 0
	for id, r := range byIncident {
		for _, e := range r.shared {
			distinctTypes[e.Type] = true
		}
		if occurrences[id] > maxOccurrences {
			maxOccurrences = occurrences[id]
		}
	}

	incidentFactor := clamp01(float64(relatedCount) / 5.0)
	diversityFactor := clamp01(float64(len(distinctTypes)) / 3.0)
	frequencyFactor := clamp01(float64(maxOccurrences) / 3.0)
	score := 0.4*incidentFactor + 0.3*diversityFactor + 0.3*frequencyFactor

	isCampaign := score >= linkThresholdScore || relatedCount >= linkThresholdCount
	if !isCampaign {
		return nil
	}

	c.log.InfoContext(ctx, "campaign correlation confirmed",
		"incident_id", incidentID, "related_count", relatedCount, "score", score)

	ids := make([]string, 0, relatedCount+1)
	ids = append(ids, incidentID)
	var overallDominant string
	overallDominantN := 0
	for otherID, r := range byIncident {
		linkType := dominantLinkType(r.shared)
		if len(r.shared) > overallDominantN {
			overallDominant, overallDominantN = linkType, len(r.shared)
		}
		if err := c.store.LinkIncidents(ctx, tenantID, incidentID, otherID, linkType, score, r.shared, "campaign correlation"); err != nil {
			return fmt.Errorf("campaign: link %s<->%s: %w", incidentID, otherID, err)
		}
		ids = append(ids, otherID)
	}

	if relatedCount >= campaignThresholdCount && score >= campaignThresholdScore {
		if _, err := c.store.CreateCampaign(ctx, tenantID, ids); err != nil {
			return fmt.Errorf("campaign: create campaign: %w", err)
		}
		metrics.RecordCampaignFormed(overallDominant)
	}

	return nil
}

// Score computes the same three-factor score as Correlate, exposed
// separately for tests. The /campaigns/stats handler reads its figures
// from storage and does not call it.
func Score(relatedCount, distinctEntityTypes, maxEntityOccurrences int) (score float64, isCampaign bool) {
	incidentFactor := clamp01(float64(relatedCount) / 5.0)
	diversityFactor := clamp01(float64(distinctEntityTypes) / 3.0)
	frequencyFactor := clamp01(float64(maxEntityOccurrences) / 3.0)
	score = 0.4*incidentFactor + 0.3*diversityFactor + 0.3*frequencyFactor
	isCampaign = score >= linkThresholdScore || relatedCount >= linkThresholdCount
	return score, isCampaign
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// dominantLinkType picks the most frequent entity type among the
// shared entities, used as the IncidentLink's link_type.
func dominantLinkType(shared []models.Entity) string {
	counts := make(map[string]int, len(shared))
	best, bestN := "shared_entity", 0
	for _, e := range shared {
		counts[e.Type]++
		if counts[e.Type] > bestN {
			best, bestN = e.Type, counts[e.Type]
		}
	}
	return best
}
