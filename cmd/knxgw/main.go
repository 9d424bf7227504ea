// KNX Gateway - entity configuration store with live reconciliation.
//
// The gateway persists entity configurations in SQLite, mirrors every
// committed change into live runtime entities, and bridges them onto the
// KNX bus through an external MQTT bus bridge. Clients drive it over a
// REST + WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/knx-gateway/migrations"

	"github.com/nerrad567/knx-gateway/internal/api"
	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
	"github.com/nerrad567/knx-gateway/internal/device"
	"github.com/nerrad567/knx-gateway/internal/entity"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/config"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/database"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/knx-gateway/internal/runtime"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting KNX gateway",
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

	// Device registry and entity store share the database handle
	devices := device.NewSQLiteRegistry(db.DB)
	store := entity.NewSQLiteStore(db.DB)

	// Connect to MQTT broker (transport to the bus bridge)
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional telemetry)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Bus client over MQTT
	bus := knx.NewBus(mqttClient, cfg.KNX.BridgeID, cfg.KNX.RecentTelegrams, log)
	if startErr := bus.Start(); startErr != nil {
		return fmt.Errorf("starting bus client: %w", startErr)
	}
	defer func() {
		log.Info("stopping bus client")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing bus client", "error", closeErr)
		}
	}()
	log.Info("bus client started", "bridge_id", cfg.KNX.BridgeID)

	// WebSocket hub is created before the runtime so live entities can
	// broadcast state changes from the moment they exist.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Runtime manager, reconciler and the config store facade
	manager := runtime.NewManager(bus, devices, hub, influxClient, log)
	defer manager.Close()

	reconciler := entity.NewReconciler(manager, log)
	entities := entity.NewConfigStore(store, reconciler, log, influxClient)

	// Bring every stored entity live
	loaded, err := entities.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}
	log.Info("entities loaded", "count", loaded, "live", manager.Count())

	// API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		KNX:      cfg.KNX,
		Logger:   log,
		Entities: entities,
		Devices:  devices,
		Bus:      bus,
		Runtime:  manager,
		MQTT:     mqttClient,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
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

	// Deferred Close() calls run in reverse order:
	// API server, runtime manager, bus client, InfluxDB, MQTT, database.

	log.Info("KNX gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KNXGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KNXGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
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

	return nil
}
