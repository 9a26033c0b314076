package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/pkg/config"
	"github.com/marmos91/docufs/pkg/coordinator"
	"github.com/marmos91/docufs/pkg/metrics"
	"github.com/marmos91/docufs/pkg/node"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `DocuFS - Distributed document filesystem

Usage:
  docufs <command> [flags]

Commands:
  init         Initialize a sample configuration file
  coordinator  Start the coordinator daemon
  node         Start a storage node daemon
  version      Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/docufs/config.yaml)
  --force            Force overwrite existing config file (init command only)

Examples:
  # Initialize config file
  docufs init

  # Start the coordinator
  docufs coordinator

  # Start a storage node against a custom config
  docufs node --config /etc/docufs/config.yaml

  # Use environment variables to override config
  DOCUFS_LOGGING_LEVEL=DEBUG docufs coordinator

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: DOCUFS_<SECTION>_<KEY> (use underscores for nested keys)

  Examples:
    DOCUFS_LOGGING_LEVEL=DEBUG
    DOCUFS_COORDINATOR_LISTEN_ADDR=0.0.0.0:9090
    DOCUFS_NODE_CLIENT_PORT=9201
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "coordinator":
		runCoordinator()
	case "node":
		runNode()
	case "help", "--help", "-h":
		fmt.Print(usage)
		os.Exit(0)
	case "version", "--version", "-v":
		fmt.Printf("docufs %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// runInit handles the init subcommand
func runInit() {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := initFlags.String("config", "", "Path to config file")
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
	fmt.Println("  2. Start the coordinator with: docufs coordinator")
	fmt.Println("  3. Start storage nodes with: docufs node")
}

// loadAndSetup parses the --config flag, loads configuration, and brings up
// the logger and (optionally) the metrics registry.
func loadAndSetup(args []string) *config.Config {
	flags := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configFile := flags.String("config", "", "Path to config file")
	if err := flags.Parse(args); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	source := configSource(*configFile)
	if source != "defaults" {
		// Hot-reload logging settings on config file edits; the watch
		// lives for the whole process.
		_, err := config.Watch(source, func(c *config.Config) {
			logger.SetLevel(c.Logging.Level)
			logger.SetFormat(c.Logging.Format)
			logger.Info("configuration reloaded", "log_level", c.Logging.Level)
		})
		if err != nil {
			logger.Warn("config watch unavailable", logger.KeyError, err)
		}
	}

	logger.Info("configuration loaded",
		"source", source,
		"log_level", cfg.Logging.Level)
	return cfg
}

// runCoordinator handles the coordinator subcommand
func runCoordinator() {
	cfg := loadAndSetup(os.Args[2:])

	srv := coordinator.New(cfg.Coordinator, cfg.Metrics, metrics.NewCoordinatorMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	logger.Info("coordinator is running; press Ctrl+C to stop (or type SHUTDOWN)")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("coordinator shutdown error", logger.KeyError, err)
			os.Exit(1)
		}
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("coordinator error", logger.KeyError, err)
			os.Exit(1)
		}
	}
	logger.Info("coordinator stopped")
}

// runNode handles the node subcommand
func runNode() {
	cfg := loadAndSetup(os.Args[2:])

	if err := config.ValidateNode(&cfg.Node); err != nil {
		log.Fatalf("Invalid node configuration: %v", err)
	}

	n := node.New(cfg.Node, metrics.NewNodeMetrics())

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Serve also returns on an operator DISCONNECT; stop unwinds the
		// metrics server so the process exits cleanly either way.
		defer stop()
		return n.Serve(ctx)
	})

	if cfg.Metrics.Enabled {
		msrv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server listening", "listen_addr", msrv.Addr)
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return msrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("node error", logger.KeyError, err)
		os.Exit(1)
	}
	logger.Info("node stopped")
}

// configSource returns a description of where the config was loaded from
func configSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
