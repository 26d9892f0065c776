// BeHome Bridge - cloud to MQTT gateway for BeHome (Bemfa) smart devices.
//
// The bridge polls the vendor cloud for device state, mirrors it onto local
// MQTT topics, and translates MQTT commands back into cloud API calls. A
// local REST/WebSocket API exposes the device registry and credential
// management to user interfaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/nerrad567/behome-bridge/migrations"

	"github.com/nerrad567/behome-bridge/internal/api"
	"github.com/nerrad567/behome-bridge/internal/bridge"
	"github.com/nerrad567/behome-bridge/internal/cloud"
	"github.com/nerrad567/behome-bridge/internal/credential"
	"github.com/nerrad567/behome-bridge/internal/device"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/database"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/behome-bridge/internal/metrics"
	"github.com/nerrad567/behome-bridge/internal/poller"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthPublishInterval is how often the bridge publishes its health
// summary to the MQTT health topic.
const healthPublishInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BeHome bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	historyRepo := device.NewSQLiteStateHistoryRepository(db.DB)

	// OAuth is only wired when a client secret is configured; a static
	// private key bypasses the token flow entirely.
	var oauth *cloud.OAuth
	if cfg.Cloud.ClientSecret != "" {
		oauth = cloud.NewOAuth(cfg.Cloud.ClientSecret, cfg.Cloud.TokenURL)
	}

	var tokenRefresher credential.Refresher
	if oauth != nil {
		tokenRefresher = oauth
	}
	credStore, err := credential.NewStore(db.DB, tokenRefresher, cfg.Cloud.PrivateKey,
		credential.WithLogger(log),
		credential.WithReauthCallback(func() {
			log.Warn("cloud re-authentication required; use the credentials API to re-link the account")
		}),
	)
	if err != nil {
		return fmt.Errorf("initialising credential store: %w", err)
	}
	log.Info("credential store initialised", "mode", credStore.Status().Mode)

	// Cloud API client
	cloudClient := cloud.NewClient(
		cfg.Cloud.APIBase,
		credStore,
		time.Duration(cfg.Cloud.RequestTimeout)*time.Second,
		log,
	)

	// Check the stored credential against the cloud before the poll loop
	// starts. Failure is not fatal: a transient outage resolves itself and
	// an auth failure is surfaced for the operator to re-link the account.
	verifyCtx, cancelVerify := context.WithTimeout(ctx, 10*time.Second)
	if verifyErr := cloudClient.Verify(verifyCtx); verifyErr != nil {
		if cloud.IsAuthError(verifyErr) {
			log.Warn("cloud rejected the stored credential; use the credentials API to re-link the account", "error", verifyErr)
		} else {
			log.Warn("cloud credential check failed", "error", verifyErr)
		}
	} else {
		log.Info("cloud credential verified")
	}
	cancelVerify()

	// Metrics
	m := metrics.New()
	promReg := prometheus.NewRegistry()
	m.Register(promReg)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled; running in API-only mode")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Poller and bridge service reference each other: the poller hands
	// reconcile results to the service, the service asks the poller for
	// early refreshes after commands. The closure breaks the cycle.
	var svc *bridge.Service
	devicePoller := poller.New(cloudClient, registry, log,
		poller.WithMetrics(m),
		poller.WithResultHandler(func(result device.ReconcileResult) {
			if svc != nil {
				svc.HandleResult(result)
			}
		}),
	)

	// Bridge service (requires MQTT)
	if mqttClient != nil {
		svcOpts := []bridge.Option{
			bridge.WithLogger(log),
			bridge.WithMetrics(m),
			bridge.WithHistory(historyRepo),
		}
		if influxClient != nil {
			svcOpts = append(svcOpts, bridge.WithMetricWriter(influxClient))
		}
		svc = bridge.NewService(mqttClient, cloudClient, registry, devicePoller, svcOpts...)

		if startErr := svc.Start(ctx); startErr != nil {
			return fmt.Errorf("starting bridge service: %w", startErr)
		}
		log.Info("bridge service started")

		go publishHealthLoop(ctx, svc, devicePoller, log)
	} else {
		log.Info("bridge service disabled (no MQTT)")
	}

	// Start the poller
	go devicePoller.Run(ctx)
	log.Info("device poller started")

	// Start the API server
	apiDeps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		MQTT:        mqttClient,
		Poller:      devicePoller,
		Credentials: credStore,
		History:     historyRepo,
		Metrics:     promReg,
		DB:          db.DB,
		Version:     version,
	}
	if oauth != nil {
		apiDeps.OAuth = oauth
	}

	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("BeHome bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BEHOME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BEHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// publishHealthLoop periodically publishes the poller health summary to the
// retained MQTT health topic so dashboards can watch bridge liveness.
func publishHealthLoop(ctx context.Context, svc *bridge.Service, p *poller.Poller, log *logging.Logger) {
	ticker := time.NewTicker(healthPublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := p.Health()
			payload := map[string]any{
				"healthy":              health.Healthy,
				"consecutive_failures": health.ConsecutiveFailures,
				"last_success":         health.LastSuccess,
				"timestamp":            time.Now().UTC().Format(time.RFC3339),
			}
			if err := svc.PublishHealth(payload); err != nil {
				log.Debug("health publish failed", "error", err)
			}
		}
	}
}

// healthCheck verifies the infrastructure connections after startup.
// The MQTT and InfluxDB clients are nil when those integrations are
// disabled and are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
