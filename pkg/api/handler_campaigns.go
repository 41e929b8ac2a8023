package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/tenant"
)

// MaxGraphHoursBack bounds GET /campaigns/graph's hours_back parameter.
const MaxGraphHoursBack = 168

// handleCampaignGraph implements GET /campaigns/graph?hours_back=.
func (s *Server) handleCampaignGraph(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	hoursBack := 24
	if v := c.QueryParam("hours_back"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return validationErr(c, "hours_back must be a positive integer")
		}
		if n > MaxGraphHoursBack {
			return validationErr(c, "hours_back cannot exceed 168")
		}
		hoursBack = n
	}

	links, err := s.store.GetCampaignGraph(c.Request().Context(), identity.TenantID, hoursBack)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(http.StatusOK, links)
}

// handleCampaignStats implements GET /campaigns/stats.
func (s *Server) handleCampaignStats(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())

	stats, err := s.store.GetCampaignStats(c.Request().Context(), identity.TenantID)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(http.StatusOK, CampaignStatsResponse{
		TotalLinks:     stats.TotalLinks,
		TotalCampaigns: stats.TotalCampaigns,
		LinkedEntities: stats.LinkedEntities,
	})
}

// MaxRelatedDepth bounds the campaign-membership traversal, matching
// storage.MaxCampaignDepth.
const MaxRelatedDepth = 10

// handleCampaignRelated implements GET /campaigns/{id}/related: the
// incidents transitively linked to id, depth-bounded at 10 hops.
func (s *Server) handleCampaignRelated(c *echo.Context) error {
	identity := tenant.MustFromContext(c.Request().Context())
	id := c.Param("id")

	incidents, err := s.store.GetCampaignIncidents(c.Request().Context(), identity.TenantID, id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(http.StatusOK, incidents)
}
