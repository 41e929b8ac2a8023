package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/tenant"
)

// handleWebhook implements the unauthenticated-or-API-key webhook
// ingest path (spec §6). A caller is admitted either by presenting a
// valid API key credential (resolved the same way as the rest of the
// API) or by signing the raw body with the configured webhook secret,
// one secret shared by all tenants; a tenant_id query parameter then
// names the tenant the event is filed under.
// The source-specific envelope is normalized into the Event schema
// before publishing — source is taken from the :source path segment.
func (s *Server) handleWebhook(c *echo.Context) error {
	source := c.Param("source")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return validationErr(c, "unable to read request body")
	}

	tenantID, ok := s.authenticateWebhook(c, body)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "auth_error", "invalid webhook credential")
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return validationErr(c, "malformed JSON body")
	}

	ev := normalizeWebhookEvent(tenantID, source, raw)
	if err := s.store.CreateEvent(c.Request().Context(), tenantID, ev); err != nil {
		return storeErr(c, err)
	}
	if _, err := s.bus.PublishEvent(c.Request().Context(), ev); err != nil {
		return storeErr(c, err)
	}
	metrics.RecordEventIngested(ev.EventType)

	return c.JSON(http.StatusAccepted, EventResponse{ID: ev.ID})
}

// authenticateWebhook resolves the tenant a webhook call is acting on
// behalf of, by API key first and HMAC signature second.
func (s *Server) authenticateWebhook(c *echo.Context, body []byte) (string, bool) {
	if raw, ok := tenant.ExtractCredential(c.Request()); ok {
		identity, err := s.resolver.Authenticate(c.Request().Context(), raw)
		if err == nil {
			return identity.TenantID, true
		}
	}

	tenantID := c.QueryParam("tenant_id")
	sig := c.Request().Header.Get("X-HORNET-Signature")
	if tenantID == "" || sig == "" || s.cfg == nil {
		return "", false
	}
	return tenantID, verifyWebhookSignature(s.cfg.Webhook.Secret, body, sig)
}

func verifyWebhookSignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return false
	}
	want, found := strings.CutPrefix(header, "sha256=")
	if !found {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	got := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(got), []byte(want))
}

func normalizeWebhookEvent(tenantID, source string, raw map[string]any) models.Event {
	eventType, _ := raw["event_type"].(string)
	if eventType == "" {
		eventType = source + ".webhook"
	}
	sev, _ := raw["severity"].(string)
	severity := models.Severity(strings.ToUpper(sev))
	if severity == "" {
		severity = models.SeverityLow
	}

	var entities []models.Entity
	if rawEntities, ok := raw["entities"].([]any); ok {
		for _, re := range rawEntities {
			m, ok := re.(map[string]any)
			if !ok {
				continue
			}
			t, _ := m["type"].(string)
			v, _ := m["value"].(string)
			if t != "" && v != "" {
				entities = append(entities, models.Entity{Type: t, Value: v})
			}
		}
	}

	return models.Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Timestamp:  time.Now(),
		Source:     source,
		SourceType: "webhook",
		EventType:  eventType,
		Severity:   severity,
		Entities:   entities,
		RawPayload: raw,
	}
}
