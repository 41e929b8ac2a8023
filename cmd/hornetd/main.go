// hornetd is HORNET's daemon: it wires the storage layer, event bus,
// tenant resolver, agent registry, dispatcher, coordinator, executor,
// campaign correlator, retry queue, realtime channels and periodic
// jobs, then serves the HTTP/WebSocket API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hornet-sec/hornet/pkg/agent"
	"github.com/hornet-sec/hornet/pkg/api"
	"github.com/hornet-sec/hornet/pkg/audit"
	"github.com/hornet-sec/hornet/pkg/campaign"
	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/coordinator"
	"github.com/hornet-sec/hornet/pkg/dispatcher"
	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/executor"
	"github.com/hornet-sec/hornet/pkg/jobs"
	"github.com/hornet-sec/hornet/pkg/realtime"
	"github.com/hornet-sec/hornet/pkg/retryqueue"
	"github.com/hornet-sec/hornet/pkg/storage"
	"github.com/hornet-sec/hornet/pkg/tenant"
	"github.com/hornet-sec/hornet/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv(config.EnvDir, config.DefaultConfigDir), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting hornetd", "version", version.Full(), "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("connected to database")

	bus, err := eventbus.New(ctx, cfg.Redis, eventbus.EventsStream, eventbus.IncidentsStream)
	if err != nil {
		slog.Error("failed to connect to event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	slog.Info("connected to event bus")

	resolver := tenant.NewResolver(store, 0)

	registry := agent.NewRegistry()
	agent.RegisterDefaults(registry)

	thresholds := config.NewThresholdStore(cfg.Detection.Thresholds)

	auditSecret := os.Getenv("HORNET_AUDIT_SECRET")
	if auditSecret == "" {
		slog.Warn("HORNET_AUDIT_SECRET not set; audit log signatures will not be tamper-evident")
	}
	auditLog := audit.New(store, auditSecret)

	connectors := executor.NewConnectorRegistry()
	if cfg.Webhook.URL != "" {
		connectors.Register("webhook", executor.NewWebhookConnector(cfg.Webhook.URL, cfg.Webhook.Secret))
	}
	exec := executor.New(store, connectors)

	correlator := campaign.New(store, 0)

	coord := coordinator.New(bus, store, registry, exec, correlator)
	coord.WithThresholds(thresholds)

	squad := cfg.Detection.Squad
	if len(squad) == 0 {
		squad = agent.DefaultDetectionSquad
	}
	disp := dispatcher.New(bus, store, registry, squad, coord)
	disp.WithThresholds(thresholds)

	retryProcessor := retryqueue.New(store, 2*time.Second)
	if wc, ok := connectors.Get("webhook"); ok {
		retryProcessor.Register("webhook", retryqueue.ConnectorHandler(wc))
	}

	dashboard := realtime.NewDashboardManager(bus)
	edge := realtime.NewEdgeManager(bus, cfg.Server.EdgeSecret)

	scheduler := jobs.New(cfg.Jobs, store, coord, retryProcessor, nil, nil)

	server := api.NewServer(cfg, store, bus, resolver, registry, disp, coord, exec, correlator, retryProcessor, dashboard, edge, thresholds, auditLog)
	scheduler.SetRateLimiterSweeper(server.Limiter())

	go disp.Run(ctx, 20, 2*time.Second)
	retryProcessor.Start(ctx)
	go dashboard.Run(ctx)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	addr := ":" + cfg.Server.HTTPPort
	if err := server.Start(ctx, addr); err != nil {
		slog.Error("api server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("hornetd shut down cleanly")
}
