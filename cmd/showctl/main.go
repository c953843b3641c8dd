// showctl runs a show-control engine: named scenes drive one media display
// and one stage light through their MQTT bridges, with at most one action
// running at a time across all scenes.
//
// Usage:
//
//	showctl                  run the service (config from SHOWCTL_CONFIG)
//	showctl hash-password    read a password on stdin, print its hash
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/showctl/internal/api"
	"github.com/nerrad567/showctl/internal/audit"
	"github.com/nerrad567/showctl/internal/auth"
	"github.com/nerrad567/showctl/internal/automation"
	"github.com/nerrad567/showctl/internal/cuelist"
	"github.com/nerrad567/showctl/internal/display"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
	"github.com/nerrad567/showctl/internal/infrastructure/database"
	"github.com/nerrad567/showctl/internal/infrastructure/influxdb"
	"github.com/nerrad567/showctl/internal/infrastructure/logging"
	"github.com/nerrad567/showctl/internal/infrastructure/metrics"
	"github.com/nerrad567/showctl/internal/infrastructure/mqtt"
	"github.com/nerrad567/showctl/internal/lighting"
	"github.com/nerrad567/showctl/internal/process"
	"github.com/nerrad567/showctl/internal/schedule"
	"github.com/nerrad567/showctl/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupProbeTimeout bounds the initial health probe of each dependency.
const startupProbeTimeout = 5 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := runHashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service, blocks until ctx is cancelled and shuts down.
// Deferred closes run in reverse order of startup.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring reads top to bottom
	log := logging.Default()
	log.Info("starting showctl", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "show", cfg.Show.Name, "scenes", len(cfg.Scenes))

	// Database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Devices
	displayClient, err := display.NewClient(mqttClient, cfg.Display.Player, log.Component("display"))
	if err != nil {
		return fmt.Errorf("creating display client: %w", err)
	}
	lightClient, err := lighting.NewClient(mqttClient, cfg.Lighting.Bulb, log.Component("lighting"))
	if err != nil {
		return fmt.Errorf("creating lighting client: %w", err)
	}
	log.Info("device clients ready", "player", displayClient.Player(), "bulb", lightClient.Bulb())

	// Player bridge (optional)
	if cfg.Display.Process.Enabled {
		player := process.New(process.FromConfig("player-bridge", cfg.Display.Process), log.Component("process"))
		if startErr := player.Start(ctx); startErr != nil {
			return fmt.Errorf("starting player bridge: %w", startErr)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
			defer cancel()
			if stopErr := player.Stop(stopCtx); stopErr != nil {
				log.Error("error stopping player bridge", "error", stopErr)
			}
		}()
		log.Info("player bridge started", "binary", cfg.Display.Process.Binary)
	}

	// Scenes
	manager := automation.NewManager(displayClient, lightClient, automation.WithLogger(log.Component("automation")))
	sceneIDs, err := cuelist.RegisterAll(manager, cfg.Scenes, log.Component("cuelist"))
	if err != nil {
		return fmt.Errorf("registering scenes: %w", err)
	}
	log.Info("scenes registered", "count", len(sceneIDs))

	history := automation.NewSQLiteHistory(db.DB)
	relay := newEventRelay(mqttClient, history, log.Component("relay"), relayBufferSize)
	defer relay.attach(manager)()

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditWriter := audit.NewWriter(auditRepo, log.Component("audit"), audit.DefaultBufferSize)

	// Background writers outlive the shutdown sequence so the last
	// settlements and audit entries are flushed.
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	var background errgroup.Group
	background.Go(func() error { relay.Run(bgCtx); return nil })
	background.Go(func() error { auditWriter.Run(bgCtx); return nil })
	defer func() {
		stopBackground()
		//nolint:errcheck // writers never return an error
		background.Wait()
	}()

	// Telemetry
	checks := map[string]api.HealthChecker{"database": db, "mqtt": mqttClient}
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		defer manager.Subscribe(influxClient.WriteSceneState)()
		defer manager.OnSettlement(influxClient.WriteSettlement)()
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	promMetrics := metrics.New(metrics.DefaultNamespace)
	defer promMetrics.Attach(manager)()

	// Schedules
	loc, err := time.LoadLocation(cfg.Show.Timezone)
	if err != nil {
		return fmt.Errorf("loading show timezone %q: %w", cfg.Show.Timezone, err)
	}
	scheduler, err := schedule.New(manager, cfg.Schedules,
		schedule.WithLogger(log.Component("schedule")),
		schedule.WithAudit(auditWriter),
		schedule.WithLocation(loc),
	)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	scheduler.Start()
	log.Info("scheduler started", "jobs", len(scheduler.Jobs()))

	// API
	operator, err := auth.NewOperator(cfg.Security.Operator.Username, cfg.Security.Operator.PasswordHash)
	if err != nil {
		return fmt.Errorf("loading operator credentials: %w", err)
	}
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Manager:   manager,
		History:   history,
		AuditRepo: auditRepo,
		Audit:     auditWriter,
		Metrics:   promMetrics,
		Issuer:    auth.NewIssuer(cfg.Security.JWT.Secret, time.Duration(cfg.Security.JWT.AccessTokenTTL)*time.Minute),
		Operator:  operator,
		Tickets:   auth.NewTicketStore(auth.DefaultTicketTTL),
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	if err := healthCheck(ctx, checks); err != nil {
		log.Warn("startup health check failed", "error", err)
	}
	if cfg.Display.Placeholder {
		placeholderCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
		if err := displayClient.Placeholder(placeholderCtx); err != nil {
			log.Warn("showing display placeholder", "error", err)
		}
		cancel()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	shutdownErr := shutdown(cfg.ShutdownTimeout(), server, scheduler, manager)
	if shutdownErr != nil {
		log.Error("shutdown incomplete", "error", shutdownErr)
	}
	log.Info("showctl stopped")
	return shutdownErr
}

// shutdown stops the command sources (API and scheduler) together, then
// tears the scenes down and waits for the running action to settle.
func shutdown(timeout time.Duration, server *api.Server, scheduler *schedule.Scheduler, manager *automation.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Close)
	g.Go(func() error { return scheduler.Stop(gctx) })
	sourcesErr := g.Wait()

	if err := manager.Shutdown(ctx); err != nil {
		return errors.Join(sourcesErr, fmt.Errorf("waiting for actions to settle: %w", err))
	}
	return sourcesErr
}

// getConfigPath returns SHOWCTL_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck probes every dependency and returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
	defer cancel()

	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
