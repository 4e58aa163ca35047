// Z-Way Socket Bridge
//
// This is the main entry point for the Z-Way socket bridge. The bridge
// maintains a virtual device registry fed by MQTT state updates and
// mirrors it over a single outbound WebSocket connection:
//   - Device level changes are pushed to the peer as deviceChange messages
//   - The peer issues setDevice/getAll commands back into the registry
//   - Level history is optionally recorded to InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/zway-socket-bridge/migrations"

	"github.com/nerrad567/zway-socket-bridge/internal/bridges/socket"
	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/config"
	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/database"
	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/zway-socket-bridge/internal/ingest"
	"github.com/nerrad567/zway-socket-bridge/internal/vdev"
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

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
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
	log.Info("starting Z-Way socket bridge",
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
	deviceRepo := vdev.NewSQLiteRepository(db.DB)
	deviceRegistry := vdev.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Connect to MQTT broker
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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

	// Start the state ingest consumer: Z-Way state updates arrive over
	// MQTT and are applied to the registry, firing metric events.
	consumer, err := startIngest(deviceRegistry, mqttClient, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting state ingest: %w", err)
	}
	defer func() {
		log.Info("stopping state ingest")
		consumer.Stop()
	}()

	// Start the socket bridge
	socketBridge, err := startSocketBridge(ctx, cfg, deviceRegistry, log)
	if err != nil {
		return fmt.Errorf("starting socket bridge: %w", err)
	}
	defer func() {
		log.Info("stopping socket bridge")
		socketBridge.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Socket bridge (unsubscribe, close connection)
	// 2. Ingest consumer
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Z-Way socket bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ZWAYBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ZWAYBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The socket bridge reconnects opportunistically, so a down peer is
	// not a startup failure.

	return nil
}

// startIngest wires the MQTT state consumer to the registry.
//
// Parameters:
//   - registry: Device registry state updates are applied to
//   - mqttClient: Connected MQTT client
//   - influxClient: Optional metric history (may be nil)
//   - log: Logger instance
//
// Returns:
//   - *ingest.Consumer: Running consumer
//   - error: If the consumer fails to start
func startIngest(registry *vdev.Registry, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*ingest.Consumer, error) {
	opts := ingest.ConsumerOptions{
		MQTTClient: mqttClient,
		Registry:   registry,
		Logger:     log,
	}
	// A nil *influxdb.Client must not become a non-nil interface value
	if influxClient != nil {
		opts.Writer = influxClient
	}

	consumer, err := ingest.NewConsumer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating consumer: %w", err)
	}

	if err := consumer.Start(); err != nil {
		return nil, fmt.Errorf("subscribing to state topics: %w", err)
	}
	log.Info("state ingest started", "topic", mqtt.Topics{}.AllDeviceStates())

	return consumer, nil
}

// startSocketBridge creates and starts the WebSocket bridge.
//
// Parameters:
//   - ctx: Context for startup
//   - cfg: Application configuration
//   - registry: Device registry the bridge observes and commands
//   - log: Logger instance
//
// Returns:
//   - *socket.Bridge: Running bridge
//   - error: If the bridge fails to start
func startSocketBridge(ctx context.Context, cfg *config.Config, registry *vdev.Registry, log *logging.Logger) (*socket.Bridge, error) {
	bridge, err := socket.NewBridge(socket.Options{
		Config:   &cfg.Socket,
		Registry: registry,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating socket bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting socket bridge: %w", err)
	}
	log.Info("socket bridge started", "address", cfg.Socket.Address)

	return bridge, nil
}
