package coordinator

import (
	"github.com/google/uuid"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/storage"
)

// storageIncidentSummaryUpdate projects the analyst-verdict fields
// ANALYSIS just set on inc into a partial storage update.
func storageIncidentSummaryUpdate(inc *models.Incident) storage.IncidentUpdate {
	u := storage.IncidentUpdate{
		Confidence: &inc.Confidence,
		TokensUsed: &inc.TokensUsed,
		Summary:    &inc.Summary,
	}
	if inc.Severity != "" {
		u.Severity = &inc.Severity
	}
	return u
}

// actionFromMap decodes one entry of a responder's proposed-actions
// list (an opaque map per spec §9's AgentOutput.content contract) into
// a concrete Action row, defaulting a missing risk level to "medium"
// and ordering by the entry's position when the agent didn't supply one.
func actionFromMap(inc *models.Incident, index int, m map[string]any) models.Action {
	a := models.Action{
		ID:         uuid.NewString(),
		IncidentID: inc.ID,
		TenantID:   inc.TenantID,
		Status:     models.ActionProposed,
		Order:      index,
		RiskLevel:  models.RiskMedium,
	}
	if v, ok := m["action_type"].(string); ok {
		a.ActionType = v
	}
	if v, ok := m["target"].(string); ok {
		a.Target = v
	}
	if v, ok := m["parameters"].(map[string]any); ok {
		a.Parameters = v
	}
	if v, ok := m["risk_level"].(string); ok && v != "" {
		a.RiskLevel = models.RiskLevel(v)
	}
	if v, ok := m["justification"].(string); ok {
		a.Justification = v
	}
	if v, ok := m["order"].(float64); ok {
		a.Order = int(v)
	}
	if v, ok := m["parallel_group"].(float64); ok {
		a.ParallelGroup = int(v)
	}
	if deps, ok := m["dependencies"].([]any); ok {
		for _, d := range deps {
			if s, ok := d.(string); ok {
				a.Dependencies = append(a.Dependencies, s)
			}
		}
	}
	return a
}
