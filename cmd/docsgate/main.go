package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/auth/devauth"
	"github.com/apexdx/docsgate/internal/auth/oidc"
	"github.com/apexdx/docsgate/internal/cache"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/internal/server"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "/etc/docsgate/config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("docsgate v%s\n", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting docsgate", "version", version, "enforce", cfg.Enforced())

	cacheInstance, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	logger.Info("cache initialized", "type", cfg.Cache.Type)

	manager := auth.NewManager(auth.Options{
		Store:           cacheInstance,
		Logger:          logger,
		SessionTTL:      cfg.Server.SessionTTL,
		DefaultReturnTo: cfg.Docs.DefaultPath,
	})

	// Provider construction needs a discovery round trip, so it runs in
	// the background: the site serves immediately and settles
	// unauthenticated if the authority is unreachable.
	go manager.Initialize(context.Background(), providerFactory(*cfg))

	srv, err := server.New(*cfg, cacheInstance, manager, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func providerFactory(cfg config.Config) auth.Factory {
	callbackURL := cfg.Server.BaseURL + "/auth-redirect"

	return func(ctx context.Context) (auth.Provider, error) {
		switch cfg.Provider.Type {
		case "oidc":
			return oidc.NewProvider(ctx, cfg.Provider.Name, *cfg.Provider.OIDC, callbackURL)
		case "dev":
			return devauth.NewProvider(cfg.Provider.Name, *cfg.Provider.Dev, callbackURL)
		default:
			return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider.Type)
		}
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
