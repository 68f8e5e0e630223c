package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/api"
	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/cache"
	"github.com/marmos91/execgate/pkg/config"
	"github.com/marmos91/execgate/pkg/metrics"
	"github.com/marmos91/execgate/pkg/monitor"
	"github.com/marmos91/execgate/pkg/store"
	badgerstore "github.com/marmos91/execgate/pkg/store/badger"
	"github.com/marmos91/execgate/pkg/store/memory"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/execgate/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `ExecGate - Execution admission service

Usage:
  execgate <command> [flags]

Commands:
  init     Initialize a sample configuration file
  start    Start the admission service
  version  Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/execgate/config.yaml)
  --force            Force overwrite existing config file (init command only)

Examples:
  # Initialize config file
  execgate init

  # Start with default config location
  execgate start

  # Start with custom config
  execgate start --config /etc/execgate/config.yaml

  # Use environment variables to override config
  EXECGATE_LOGGING_LEVEL=DEBUG execgate start

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: EXECGATE_<SECTION>_<KEY> (use underscores for nested keys)

  Examples:
    EXECGATE_LOGGING_LEVEL=DEBUG
    EXECGATE_STORE_PATH=/var/lib/execgate/objects
    EXECGATE_API_PORT=9090

For more information, visit: https://github.com/marmos91/execgate
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "init":
		runInit()
	case "start":
		runStart()
	case "help", "--help", "-h":
		fmt.Print(usage)
		os.Exit(0)
	case "version", "--version", "-v":
		fmt.Printf("execgate %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// runInit handles the init subcommand
func runInit() {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := initFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/execgate/config.yaml)")
	force := initFlags.Bool("force", false, "Force overwrite existing config file")

	if err := initFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	var configPath string
	var err error

	if *configFile != "" {
		err = config.InitConfigToPath(*configFile, *force)
		configPath = *configFile
	} else {
		configPath, err = config.InitConfig(*force)
	}

	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the service with: execgate start")
	fmt.Printf("  3. Or specify custom config: execgate start --config %s\n", configPath)
}

// runStart handles the start subcommand
func runStart() {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := startFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/execgate/config.yaml)")

	if err := startFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.MustLoad(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "execgate",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(*configFile))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// Initialize metrics FIRST (before creating components that use metrics)
	// This ensures the registered constructors return live collectors
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	durable, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}
	defer func() {
		if err := durable.Close(); err != nil {
			logger.Error("store close error", logger.Err(err))
		}
	}()
	logger.Info("Object store opened", "type", cfg.Store.Type, "path", cfg.Store.Path)

	availCache := cache.New(durable, cfg.CacheOptions(), metrics.NewCacheMetrics())
	manager := backpressure.New(metrics.NewBackpressureMetrics())

	mon := monitor.New(availCache, manager, cfg.MonitorOptions())
	mon.Start(ctx)
	defer mon.Stop()
	logger.Info("Backpressure monitor started",
		"interval", cfg.Monitor.Interval,
		"high_threshold", cfg.Monitor.HighThreshold,
		"low_threshold", cfg.Monitor.LowThreshold)

	// Periodic commit loop: flushes dirty cache entries to the durable
	// store so the monitor sees occupancy fall
	commitDone := make(chan struct{})
	go func() {
		defer close(commitDone)
		ticker := time.NewTicker(cfg.Cache.CommitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := availCache.Commit(ctx); err != nil && ctx.Err() == nil {
					logger.Error("cache commit failed", logger.Err(err))
				}
			}
		}
	}()

	// Start API server (if enabled - defaults to true)
	serverDone := make(chan error, 1)
	if cfg.API.IsEnabled() {
		apiServer := api.NewServer(cfg.API, availCache, manager)
		logger.Info("API server enabled", "port", apiServer.Port())
		go func() {
			serverDone <- apiServer.Start(ctx)
		}()
	} else {
		logger.Info("API server disabled")
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Service is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("API server error", logger.Err(err))
		}
		cancel()
	}

	shutdown(cfg, availCache, commitDone)
}

// shutdown drains in-flight work within the configured timeout: waits for
// the commit loop to exit, then writes a final commit so no dirty entries
// are lost across restart.
func shutdown(cfg *config.Config, availCache *cache.AvailabilityCache, commitDone <-chan struct{}) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-commitDone:
	case <-shutdownCtx.Done():
		logger.Error("commit loop did not stop within shutdown timeout")
		return
	}

	if err := availCache.Commit(shutdownCtx); err != nil {
		logger.Error("final cache commit failed", logger.Err(err))
	} else {
		logger.Info("Final cache commit complete")
	}
	logger.Info("Service stopped gracefully")
}

// openStore creates the durable store backend selected by the configuration.
func openStore(cfg *config.Config) (store.DurableStore, error) {
	switch cfg.Store.Type {
	case "memory":
		return memory.New(), nil
	default:
		return badgerstore.New(badgerstore.Options{
			Path:       cfg.Store.Path,
			SyncWrites: cfg.Store.SyncWrites,
		})
	}
}

// getConfigSource returns a description of where the config was loaded from
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
