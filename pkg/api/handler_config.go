package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/tenant"
)

// handleGetThresholds implements GET /config/thresholds, reading the
// live ThresholdStore rather than the config file's startup snapshot.
func (s *Server) handleGetThresholds(c *echo.Context) error {
	if s.thresholds == nil {
		return c.JSON(http.StatusOK, config.DefaultThresholds())
	}
	return c.JSON(http.StatusOK, s.thresholds.Get())
}

// handlePutThresholds implements PUT /config/thresholds: every
// threshold must land in [0,1] (config.Thresholds.Validate), and the
// update takes effect on the next event processed — no restart
// required (C5/C6 read through the same ThresholdStore).
func (s *Server) handlePutThresholds(c *echo.Context) error {
	if s.thresholds == nil {
		return storeErr(c, errThresholdsUnavailable)
	}

	var t config.Thresholds
	if err := c.Bind(&t); err != nil {
		return validationErr(c, "malformed request body")
	}
	if err := s.thresholds.Set(t); err != nil {
		return validationErr(c, err.Error())
	}

	identity := tenant.MustFromContext(c.Request().Context())
	s.audit.Log(c.Request().Context(), identity.TenantID, identity.KeyID, "config.thresholds_update", "thresholds", "",
		map[string]any{"detection": t.Detection, "dismiss": t.Dismiss, "investigate": t.Investigate}, c.RealIP())

	return c.JSON(http.StatusOK, t)
}

// handleGetPlaybooks implements GET /config/playbooks: the static,
// config-file-sourced list of registered agent-sequence playbooks.
func (s *Server) handleGetPlaybooks(c *echo.Context) error {
	if s.cfg == nil {
		return c.JSON(http.StatusOK, []config.Playbook{})
	}
	return c.JSON(http.StatusOK, s.cfg.Playbooks)
}
