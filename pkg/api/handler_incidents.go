package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/tenant"
)

// handleListIncidents implements GET /incidents, filterable by state,
// severity, limit and offset (spec §6).
func (s *Server) handleListIncidents(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	filter := models.IncidentFilter{
		State:    models.IncidentState(c.QueryParam("state")),
		Severity: models.Severity(c.QueryParam("severity")),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return validationErr(c, "limit must be an integer")
		}
		filter.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return validationErr(c, "offset must be an integer")
		}
		filter.Offset = n
	}

	incidents, err := s.store.ListIncidents(c.Request().Context(), identity.TenantID, filter)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(http.StatusOK, incidents)
}

// handleGetIncident implements GET /incidents/{id}. A cross-tenant or
// unknown id both surface as models.ErrNotFound from the RLS-scoped
// query, so this collapses to the same 404 either way.
func (s *Server) handleGetIncident(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())
	id := c.Param("id")

	inc, err := s.store.GetIncident(c.Request().Context(), identity.TenantID, id)
	if err != nil {
		return storeErr(c, err)
	}

	findings, err := s.store.ListFindings(c.Request().Context(), identity.TenantID, id)
	if err != nil {
		return storeErr(c, err)
	}
	actions, err := s.store.ListActionsForIncident(c.Request().Context(), identity.TenantID, id)
	if err != nil {
		return storeErr(c, err)
	}

	return c.JSON(http.StatusOK, incidentDetail{
		Incident: *inc,
		Findings: findings,
		Actions:  actions,
	})
}

type incidentDetail struct {
	models.Incident
	Findings []models.AgentFinding `json:"findings"`
	Actions  []models.Action       `json:"actions"`
}

// handleIncidentAction implements POST /incidents/{id}/action: the
// human oversight decision the OVERSIGHT phase blocks on (spec §4.6).
// response_type is one of approve, reject, modify. modify is handled
// exactly like approve: the action is approved with its parameters as
// proposed, and the request's Modifications are not applied.
func (s *Server) handleIncidentAction(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())
	incidentID := c.Param("id")

	var req ActionDecisionRequest
	if err := c.Bind(&req); err != nil {
		return validationErr(c, "malformed request body")
	}
	if req.ActionID == "" {
		return validationErr(c, "action_id is required")
	}

	var to models.ActionStatus
	switch req.ResponseType {
	case "approve", "modify":
		to = models.ActionApproved
	case "reject":
		to = models.ActionRejected
	default:
		return validationErr(c, "response_type must be approve, reject, or modify")
	}

	if err := s.store.UpdateActionStatus(c.Request().Context(), identity.TenantID, req.ActionID, to, "", ""); err != nil {
		return storeErr(c, err)
	}

	s.audit.Log(c.Request().Context(), identity.TenantID, identity.KeyID, "incident.action_decision", "action", req.ActionID,
		map[string]any{"incident_id": incidentID, "response_type": req.ResponseType, "justification": req.Justification},
		c.RealIP())

	if to == models.ActionApproved {
		go s.executeApprovedAction(identity.TenantID, incidentID)
	}

	return c.JSON(http.StatusOK, ActionDecisionResponse{ActionID: req.ActionID, Status: string(to)})
}

// executeApprovedAction hands the incident's approved action group off
// to the executor once an oversight decision unblocks it. Run off the
// request goroutine: EXECUTION may take longer than an HTTP client
// should wait on, and the decision itself is already durable.
func (s *Server) executeApprovedAction(tenantID, incidentID string) {
	if s.executor == nil {
		return
	}
	ctx := tenant.WithIdentity(context.Background(), models.TenantIdentity{TenantID: tenantID})
	if _, err := s.executor.Execute(ctx, tenantID, incidentID); err != nil {
		slog.Error("action execution failed", "incident_id", incidentID, "tenant_id", tenantID, "error", err)
	}
}
