package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/tenant"
)

// handleListDLQ implements GET /dlq: every dead-lettered retry job for
// the caller's tenant (C8).
func (s *Server) handleListDLQ(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	jobs, err := s.retry.ListDLQ(c.Request().Context(), identity.TenantID)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// handleReplayDLQ implements POST /dlq/{id}/replay: resets the job to
// PENDING with a fresh attempt counter.
func (s *Server) handleReplayDLQ(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())
	id := c.Param("id")

	ok, err := s.retry.Replay(c.Request().Context(), identity.TenantID, id)
	if err != nil {
		return storeErr(c, err)
	}

	s.audit.Log(c.Request().Context(), identity.TenantID, identity.KeyID, "dlq.replay", "retry_job", id,
		map[string]any{"success": ok}, c.RealIP())

	return c.JSON(http.StatusOK, DLQReplayResponse{Success: ok})
}
