package api

import (
	"log/slog"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/tenant"
)

// handleDashboardWS upgrades GET /api/v1/ws/{tenant_id}?api_key=... to
// a dashboard realtime connection (C10). The path's tenant_id must
// agree with the authenticated credential's tenant.
func (s *Server) handleDashboardWS(c *echo.Context) error {
	if !requireTenantPath(c, "tenant_id") {
		return authErr(c, tenant.ErrTenantInactive)
	}
	identity := tenant.MustFromContext(c.Request().Context())

	conn, err := websocket.Accept(c.Response(), c.Request(), wsAcceptOptions())
	if err != nil {
		slog.Error("dashboard websocket upgrade failed", "error", err)
		return nil
	}
	s.dashboard.HandleConnection(c.Request().Context(), identity.TenantID, conn)
	return nil
}

// handleEdgeWS upgrades GET /api/v1/edge/connect?api_key=... to an edge
// agent's realtime connection (C10).
func (s *Server) handleEdgeWS(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	conn, err := websocket.Accept(c.Response(), c.Request(), wsAcceptOptions())
	if err != nil {
		slog.Error("edge websocket upgrade failed", "error", err)
		return nil
	}
	s.edge.HandleConnection(c.Request().Context(), identity.TenantID, conn)
	return nil
}
