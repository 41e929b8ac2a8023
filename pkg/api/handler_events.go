package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/tenant"
)

func toModelEvent(tenantID string, req EventRequest) models.Event {
	entities := make([]models.Entity, 0, len(req.Entities))
	for _, e := range req.Entities {
		entities = append(entities, models.Entity{Type: e.Type, Value: e.Value})
	}
	sev := models.Severity(req.Severity)
	if sev == "" {
		sev = models.SeverityLow
	}
	return models.Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Timestamp:  time.Now(),
		Source:     req.Source,
		SourceType: req.SourceType,
		EventType:  req.EventType,
		Severity:   sev,
		Entities:   entities,
		RawPayload: req.RawPayload,
	}
}

// handleCreateEvent implements POST /events: persists the event and
// publishes it to the event bus for asynchronous detection-squad
// processing (C3, C5).
func (s *Server) handleCreateEvent(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return validationErr(c, "malformed request body")
	}
	if req.EventType == "" {
		return validationErr(c, "event_type is required")
	}

	ev := toModelEvent(identity.TenantID, req)
	if err := s.store.CreateEvent(c.Request().Context(), identity.TenantID, ev); err != nil {
		return storeErr(c, err)
	}
	if _, err := s.bus.PublishEvent(c.Request().Context(), ev); err != nil {
		return storeErr(c, err)
	}
	metrics.RecordEventIngested(ev.EventType)

	return c.JSON(http.StatusCreated, EventResponse{ID: ev.ID})
}

// handleCreateEventBatch implements POST /events/batch, rejecting
// batches over MaxBatchSize and returning 202 once every event has
// been persisted and published.
func (s *Server) handleCreateEventBatch(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	var req EventBatchRequest
	if err := c.Bind(&req); err != nil {
		return validationErr(c, "malformed request body")
	}
	if len(req.Events) == 0 {
		return validationErr(c, "events must be non-empty")
	}
	if len(req.Events) > MaxBatchSize {
		return validationErr(c, "events exceeds the maximum batch size of 100")
	}

	ids := make([]string, 0, len(req.Events))
	for _, er := range req.Events {
		if er.EventType == "" {
			return validationErr(c, "event_type is required for every event in the batch")
		}
		ev := toModelEvent(identity.TenantID, er)
		if err := s.store.CreateEvent(c.Request().Context(), identity.TenantID, ev); err != nil {
			return storeErr(c, err)
		}
		if _, err := s.bus.PublishEvent(c.Request().Context(), ev); err != nil {
			return storeErr(c, err)
		}
		metrics.RecordEventIngested(ev.EventType)
		ids = append(ids, ev.ID)
	}

	return c.JSON(http.StatusAccepted, EventBatchResponse{Accepted: len(ids), IDs: ids})
}
