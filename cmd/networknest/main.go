package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/config"
	"github.com/networknest/networknest/internal/discovery"
	"github.com/networknest/networknest/internal/homeassistant"
	"github.com/networknest/networknest/internal/monitoring"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/server"
	"github.com/networknest/networknest/internal/store"
	"github.com/networknest/networknest/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "token":
			runToken(os.Args[2:])
			return
		case "backup":
			runBackup(os.Args[2:])
			return
		case "restore":
			runRestore(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}
	runServer(os.Args[1:])
}

func runServer(args []string) {
	fs := flag.NewFlagSet("networknest", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("NetworkNest server starting", zap.String("version", version.Short()))

	st, err := store.Open(cfg.GetString("database.driver"), cfg.GetString("database.dsn"))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()

	authn, err := auth.New(cfg.GetString("auth.jwt_secret"), cfg.GetString("auth.issuer"), logger.Named("auth"))
	if err != nil {
		logger.Fatal("auth.jwt_secret must be set", zap.Error(err))
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry := plugin.NewRegistry(logger)

	// Compile-time composition.
	plugins := []plugin.Plugin{
		discovery.New(),
		monitoring.New(),
		homeassistant.New(),
	}
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	if err := registry.InitAll(plugin.Dependencies{Config: cfg, Store: st, Metrics: metrics}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := registry.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	addr := cfg.GetString("server.addr")
	srv := server.New(addr, registry, authn, metrics, logger.Named("http"),
		server.WithTimeouts(cfg.GetDuration("server.read_timeout"), cfg.GetDuration("server.write_timeout")))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("NetworkNest server ready", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	registry.StopAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("NetworkNest server stopped")
}

// newLogger builds the process logger from logging.level and logging.format.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.GetString("logging.format") == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.GetString("logging.level"))
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}
