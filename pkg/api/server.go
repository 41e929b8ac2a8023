// Package api exposes HORNET's HTTP and WebSocket surface: event
// ingest, incident inspection and oversight decisions, campaign
// queries, runtime configuration, the dead-letter queue, health and
// metrics, and the dashboard/edge realtime channels. Routing and
// middleware follow the teacher's echo-based server shape.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/hornet-sec/hornet/pkg/agent"
	"github.com/hornet-sec/hornet/pkg/audit"
	"github.com/hornet-sec/hornet/pkg/campaign"
	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/coordinator"
	"github.com/hornet-sec/hornet/pkg/dispatcher"
	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/executor"
	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/realtime"
	"github.com/hornet-sec/hornet/pkg/retryqueue"
	"github.com/hornet-sec/hornet/pkg/storage"
	"github.com/hornet-sec/hornet/pkg/tenant"
	"github.com/hornet-sec/hornet/pkg/version"
)

// MaxRequestBodyBytes bounds every inbound request body.
const MaxRequestBodyBytes = 2 * 1024 * 1024

// Server wires every backend component behind HORNET's HTTP API.
type Server struct {
	echo *echo.Echo

	cfg         *config.Config
	store       *storage.Store
	bus         *eventbus.Bus
	resolver    *tenant.Resolver
	registry    *agent.Registry
	dispatcher  *dispatcher.Dispatcher
	coordinator *coordinator.Coordinator
	executor    *executor.Executor
	correlator  *campaign.Correlator
	retry       *retryqueue.Processor
	dashboard   *realtime.DashboardManager
	edge        *realtime.EdgeManager
	thresholds  *config.ThresholdStore
	limiter     *RateLimiter
	audit       *audit.Logger

	startedAt time.Time
}

// NewServer builds a Server with every route registered, ready to
// Start. Any dependency may be nil in tests that only exercise a
// subset of routes, provided the corresponding endpoints are not hit.
func NewServer(
	cfg *config.Config,
	store *storage.Store,
	bus *eventbus.Bus,
	resolver *tenant.Resolver,
	registry *agent.Registry,
	disp *dispatcher.Dispatcher,
	coord *coordinator.Coordinator,
	exec *executor.Executor,
	correlator *campaign.Correlator,
	retry *retryqueue.Processor,
	dashboard *realtime.DashboardManager,
	edge *realtime.EdgeManager,
	thresholds *config.ThresholdStore,
	auditLog *audit.Logger,
) *Server {
	s := &Server{
		echo:        echo.New(),
		cfg:         cfg,
		store:       store,
		bus:         bus,
		resolver:    resolver,
		registry:    registry,
		dispatcher:  disp,
		coordinator: coord,
		executor:    exec,
		correlator:  correlator,
		retry:       retry,
		dashboard:   dashboard,
		edge:        edge,
		thresholds:  thresholds,
		audit:       auditLog,
		startedAt:   time.Now(),
	}
	if cfg != nil {
		s.limiter = NewRateLimiter(TierLimitsFromConfig(cfg.RateLimit))
	} else {
		s.limiter = NewRateLimiter(nil)
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(MaxRequestBodyBytes))
	s.echo.Use(requestID())
	s.echo.Use(securityHeaders())

	// Unauthenticated surface.
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/ready", s.handleHealthReady)
	s.echo.GET("/health/live", s.handleHealthLive)
	s.echo.GET("/health/agents", s.handleHealthAgents)
	s.echo.GET("/metrics", func(c *echo.Context) error {
		metrics.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
	s.echo.POST("/webhook/:source", s.handleWebhook)

	v1 := s.echo.Group("/api/v1", tenantAuth(s.resolver), rateLimit(s.limiter))

	v1.POST("/events", s.handleCreateEvent)
	v1.POST("/events/batch", s.handleCreateEventBatch)

	v1.GET("/incidents", s.handleListIncidents)
	v1.GET("/incidents/:id", s.handleGetIncident)
	v1.POST("/incidents/:id/action", s.handleIncidentAction)

	v1.GET("/campaigns/graph", s.handleCampaignGraph)
	v1.GET("/campaigns/stats", s.handleCampaignStats)
	v1.GET("/campaigns/:id/related", s.handleCampaignRelated)

	v1.GET("/config/thresholds", s.handleGetThresholds)
	v1.PUT("/config/thresholds", s.handlePutThresholds)
	v1.GET("/config/playbooks", s.handleGetPlaybooks)

	v1.GET("/dlq", s.handleListDLQ)
	v1.POST("/dlq/:id/replay", s.handleReplayDLQ)

	v1.GET("/ws/:tenant_id", s.handleDashboardWS)
	s.echo.GET("/api/v1/edge/connect", s.handleEdgeWS, tenantAuth(s.resolver))
}

// Start runs the HTTP server on addr, blocking until ctx is canceled
// or the server returns a fatal error.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("api shutdown error", "error", err)
		}
	}()
	slog.Info("api server listening", "addr", addr, "version", version.Full())
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Echo exposes the underlying router for tests that need to drive
// requests through httptest without a real listener.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Limiter exposes the server's RateLimiter so the periodic-jobs
// scheduler can wire its bucket sweep (pkg/jobs.RateLimiterSweeper).
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

func wsAcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{InsecureSkipVerify: true}
}
