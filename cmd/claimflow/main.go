// Package main is the entry point for the claimflow server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tcmartin/claimflow/pkg/api"
	"github.com/tcmartin/claimflow/pkg/config"
	"github.com/tcmartin/claimflow/pkg/monitor"
	"github.com/tcmartin/claimflow/pkg/store"
	"github.com/tcmartin/claimflow/pkg/workflow"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "claimflow"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	// Parse command-line flags
	flag.Parse()

	// Print version information if requested
	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the application
	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start the application in a goroutine
	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	// Wait for interrupt signal or error
	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or creates a default one
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	// If a config path is specified, load it
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
	} else {
		// Otherwise, look for a config file in standard locations
		locations := []string{
			"./config.json",
			"./configs/config.json",
			filepath.Join(os.Getenv("HOME"), ".claimflow", "config.json"),
			"/etc/claimflow/config.json",
		}

		for _, path := range locations {
			if loadedCfg, err := config.LoadConfig(path); err == nil {
				cfg = loadedCfg
				break
			}
		}

		// If no config file is found, create a default one
		if cfg == nil {
			cfg = config.DefaultConfig()

			// Save the default config to the user's home directory
			defaultPath := filepath.Join(os.Getenv("HOME"), ".claimflow", "config.json")
			if err := config.SaveConfig(cfg, defaultPath); err != nil {
				return nil, fmt.Errorf("failed to save default config: %w", err)
			}

			fmt.Printf("Created default configuration at %s\n", defaultPath)
		}
	}

	// Override with environment variables if present
	overrideConfigFromEnv(cfg)

	return cfg, nil
}

// overrideConfigFromEnv overrides configuration values from environment variables
func overrideConfigFromEnv(cfg *config.Config) {
	// Server configuration
	if host := os.Getenv("CLAIMFLOW_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("CLAIMFLOW_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Storage configuration
	if storageType := os.Getenv("CLAIMFLOW_STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}

	// Redis configuration
	if addr := os.Getenv("CLAIMFLOW_REDIS_ADDR"); addr != "" {
		cfg.Storage.Redis.Addr = addr
	}
	if password := os.Getenv("CLAIMFLOW_REDIS_PASSWORD"); password != "" {
		cfg.Storage.Redis.Password = password
	}
	if db := os.Getenv("CLAIMFLOW_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.Storage.Redis.DB = n
		}
	}
	if prefix := os.Getenv("CLAIMFLOW_REDIS_KEY_PREFIX"); prefix != "" {
		cfg.Storage.Redis.KeyPrefix = prefix
	}

	// DynamoDB configuration
	if region := os.Getenv("CLAIMFLOW_DYNAMODB_REGION"); region != "" {
		cfg.Storage.DynamoDB.Region = region
	}
	if endpoint := os.Getenv("CLAIMFLOW_DYNAMODB_ENDPOINT"); endpoint != "" {
		cfg.Storage.DynamoDB.Endpoint = endpoint
	}
	if tablePrefix := os.Getenv("CLAIMFLOW_DYNAMODB_TABLE_PREFIX"); tablePrefix != "" {
		cfg.Storage.DynamoDB.TablePrefix = tablePrefix
	}

	// PostgreSQL configuration
	if host := os.Getenv("CLAIMFLOW_POSTGRES_HOST"); host != "" {
		cfg.Storage.Postgres.Host = host
	}
	if port := os.Getenv("CLAIMFLOW_POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Storage.Postgres.Port = p
		}
	}
	if database := os.Getenv("CLAIMFLOW_POSTGRES_DATABASE"); database != "" {
		cfg.Storage.Postgres.Database = database
	}
	if user := os.Getenv("CLAIMFLOW_POSTGRES_USER"); user != "" {
		cfg.Storage.Postgres.User = user
	}
	if password := os.Getenv("CLAIMFLOW_POSTGRES_PASSWORD"); password != "" {
		cfg.Storage.Postgres.Password = password
	}
	if sslMode := os.Getenv("CLAIMFLOW_POSTGRES_SSL_MODE"); sslMode != "" {
		cfg.Storage.Postgres.SSLMode = sslMode
	}

	// Monitor configuration
	if enabled := os.Getenv("CLAIMFLOW_MONITOR_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Monitor.Enabled = b
		}
	}
	if schedule := os.Getenv("CLAIMFLOW_MONITOR_SCHEDULE"); schedule != "" {
		cfg.Monitor.Schedule = schedule
	}
}

// App represents the claimflow application
type App struct {
	config        *config.Config
	server        *api.Server
	storeProvider store.Provider
	monitor       *monitor.PendingMonitor
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	// Build the store provider configuration from the loaded config
	storageType := cfg.Storage.Type
	if storageType == "postgres" {
		storageType = "postgresql"
	}
	providerConfig := store.ProviderConfig{
		Type: store.ProviderType(storageType),
	}
	switch providerConfig.Type {
	case store.RedisProviderType:
		providerConfig.Redis = &store.RedisProviderConfig{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		}
	case store.DynamoDBProviderType:
		providerConfig.DynamoDB = &store.DynamoDBProviderConfig{
			Region:      cfg.Storage.DynamoDB.Region,
			Endpoint:    cfg.Storage.DynamoDB.Endpoint,
			TablePrefix: cfg.Storage.DynamoDB.TablePrefix,
		}
	case store.PostgreSQLProviderType:
		providerConfig.PostgreSQL = &store.PostgreSQLProviderConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			Database: cfg.Storage.Postgres.Database,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		}
	}

	storeProvider, err := store.NewProvider(providerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}
	if err := storeProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("Using %s storage provider", cfg.Storage.Type)

	// Create the workflow engine with the claim-handling graph
	engine := workflow.NewEngine(storeProvider, workflow.NewClaimGraph())

	// Create API server
	server := api.NewServer(cfg, engine)

	app := &App{
		config:        cfg,
		server:        server,
		storeProvider: storeProvider,
	}

	// Optional pending-step monitor
	if cfg.Monitor.Enabled {
		app.monitor = monitor.NewPendingMonitor(engine, cfg.Monitor.Schedule, api.HumanInputSteps)
	}

	return app, nil
}

// Start starts the application
func (a *App) Start() error {
	fmt.Printf("Starting %s version %s\n", AppName, AppVersion)

	if a.monitor != nil {
		if err := a.monitor.Start(); err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	if a.monitor != nil {
		a.monitor.Stop()
	}

	// Stop the server
	if err := a.server.Stop(ctx); err != nil {
		return err
	}

	// Close storage
	if err := a.storeProvider.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	return nil
}
