package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/version"
)

// handleHealth implements GET /health: a composite status covering the
// database and event bus.
func (s *Server) handleHealth(c *echo.Context) error {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Time:     time.Now(),
		Database: "healthy",
		EventBus: "healthy",
	}

	if s.store != nil {
		if hs, err := s.store.Health(c.Request().Context()); err != nil || hs.Status != "healthy" {
			resp.Database = "unhealthy"
			resp.Status = "degraded"
		}
	}
	if s.bus != nil {
		depth, err := s.bus.QueueDepth(c.Request().Context())
		if err != nil {
			resp.EventBus = "unhealthy"
			resp.Status = "degraded"
		} else {
			resp.QueueDepth = depth
		}
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// handleHealthReady implements GET /health/ready: readiness gates on
// the database being reachable, since nothing can serve traffic
// without it.
func (s *Server) handleHealthReady(c *echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
	if _, err := s.store.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// handleHealthLive implements GET /health/live: a liveness probe that
// never touches a dependency, only confirming the process is serving
// requests at all.
func (s *Server) handleHealthLive(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// handleHealthAgents implements GET /health/agents: registered agent
// names plus the dispatcher's lifetime counters.
func (s *Server) handleHealthAgents(c *echo.Context) error {
	resp := AgentHealthResponse{}
	if s.registry != nil {
		for _, a := range s.registry.All() {
			resp.Agents = append(resp.Agents, a.Name())
		}
	}
	if s.dispatcher != nil {
		stat := s.dispatcher.Stats()
		resp.Dispatcher = DispatcherStat{
			Processed: stat.Processed,
			Promoted:  stat.Promoted,
			Dismissed: stat.Dismissed,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
