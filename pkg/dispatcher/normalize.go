package dispatcher

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hornet-sec/hornet/pkg/models"
)

// normalizeEvent converts the raw map read off the event stream into a
// typed Event, filling in a fresh id and timestamp when the publisher
// omitted them. Malformed entity entries are skipped rather than
// failing the whole event.
func normalizeEvent(raw map[string]any) (models.Event, error) {
	var ev models.Event

	ev.ID, _ = raw["id"].(string)
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.TenantID, _ = raw["tenant_id"].(string)
	if ev.TenantID == "" {
		return ev, errMissingTenant
	}
	ev.Source, _ = raw["source"].(string)
	ev.SourceType, _ = raw["source_type"].(string)
	ev.EventType, _ = raw["event_type"].(string)
	severity, _ := raw["severity"].(string)
	ev.Severity = models.Severity(strings.ToUpper(severity))
	if ev.Severity == "" {
		ev.Severity = models.SeverityMedium
	}

	if ts, ok := raw["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			ev.Timestamp = parsed
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if rawEntities, ok := raw["entities"].([]any); ok {
		for _, re := range rawEntities {
			m, ok := re.(map[string]any)
			if !ok {
				continue
			}
			t, _ := m["type"].(string)
			v, _ := m["value"].(string)
			if t == "" || v == "" {
				continue
			}
			ev.Entities = append(ev.Entities, models.Entity{Type: t, Value: v})
		}
	}

	ev.RawPayload = raw
	return ev, nil
}
