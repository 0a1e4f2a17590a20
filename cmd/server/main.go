package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/evidence-triage-server/internal/api"
	"github.com/evidence-triage-server/internal/config"
	"github.com/evidence-triage-server/internal/database"
	"github.com/evidence-triage-server/internal/domain"
	"github.com/evidence-triage-server/internal/logstore"
	"github.com/evidence-triage-server/internal/service"
	"github.com/evidence-triage-server/pkg/sources"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	vocab, err := config.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load vocabulary")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize screening log store")
	}
	defer cleanup()

	adapters := buildAdapters(cfg, logger)
	if len(adapters) == 0 {
		logger.Fatal("No source databases enabled")
	}

	pipeline := service.NewPipeline(
		service.NewExpander(vocab),
		service.NewOrchestrator(adapters, cfg.Retrieval.AdapterTimeout, cfg.Retrieval.DefaultMaxResults, logger),
		service.NewScreener(service.ScreeningConfig{
			MinQualityScore:   cfg.Screening.MinQualityScore,
			MinRelevanceScore: cfg.Screening.MinRelevanceScore,
		}, logger),
		service.NewHeuristicBiasAssessor(),
		store,
		logger,
	)

	server := api.NewServer(cfg, pipeline, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"sources": len(adapters),
		"storage": cfg.Storage.Backend,
	}).Info("Starting evidence triage server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// buildStore selects the screening log backend from configuration. The
// returned cleanup closes the store and any underlying pool.
func buildStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (domain.LogStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		store, err := logstore.NewMemoryStore(cfg.Storage.MemoryCapacity)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "sqlite":
		store, err := logstore.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		if cfg.Storage.MigrationsPath != "" {
			runner, err := database.NewMigrationRunner(cfg.Storage.DatabaseURL, cfg.Storage.MigrationsPath, logger)
			if err != nil {
				return nil, nil, err
			}
			if err := runner.Up(); err != nil {
				runner.Close()
				return nil, nil, err
			}
			runner.Close()
		}

		db, err := database.NewConnectionURL(ctx, cfg.Storage.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		store := logstore.NewPostgresStore(db.Pool, logger)
		return store, func() { db.Close() }, nil

	default:
		return nil, nil, domain.NewValidationError("storage.backend", "unknown backend "+cfg.Storage.Backend)
	}
}

// buildAdapters assembles the enabled source adapters, each wrapped with a
// circuit breaker and a rate limiter, and a shared Redis cache when enabled.
func buildAdapters(cfg *config.Config, logger *logrus.Logger) []domain.SourceAdapter {
	var cache *sources.SearchCache
	if cfg.Cache.Enabled {
		var err error
		cache, err = sources.NewSearchCache(sources.CacheConfig{
			RedisURL:    cfg.Cache.RedisURL,
			DefaultTTL:  cfg.Cache.DefaultTTL,
			MaxRetries:  cfg.Cache.MaxRetries,
			PoolSize:    cfg.Cache.PoolSize,
			PoolTimeout: cfg.Cache.PoolTimeout,
		})
		if err != nil {
			logger.WithError(err).Warn("Search cache unavailable, continuing without it")
			cache = nil
		}
	}

	wrap := func(adapter domain.SourceAdapter, src config.SourceConfig) domain.SourceAdapter {
		wrapped := domain.SourceAdapter(sources.NewBreakerAdapter(adapter, logger))
		wrapped = sources.NewRateLimitedAdapter(wrapped, src.RateLimit)
		if cache != nil {
			wrapped = sources.NewCachedAdapter(wrapped, cache, logger)
		}
		return wrapped
	}

	var adapters []domain.SourceAdapter
	if src := cfg.Sources.PubMed; src.Enabled {
		adapters = append(adapters, wrap(sources.NewPubMedAdapter(sources.PubMedConfig{
			BaseURL:    src.BaseURL,
			APIKey:     src.APIKey,
			Email:      src.Email,
			Timeout:    src.Timeout,
			MaxResults: src.MaxResults,
		}), src))
	}
	if src := cfg.Sources.PLOS; src.Enabled {
		adapters = append(adapters, wrap(sources.NewPLOSAdapter(sources.PLOSConfig{
			BaseURL:    src.BaseURL,
			APIKey:     src.APIKey,
			Timeout:    src.Timeout,
			MaxResults: src.MaxResults,
		}), src))
	}
	if src := cfg.Sources.BMC; src.Enabled {
		adapters = append(adapters, wrap(sources.NewBMCAdapter(sources.BMCConfig{
			BaseURL:    src.BaseURL,
			APIKey:     src.APIKey,
			Timeout:    src.Timeout,
			MaxResults: src.MaxResults,
		}), src))
	}
	if src := cfg.Sources.TRIP; src.Enabled {
		adapters = append(adapters, wrap(sources.NewTRIPAdapter(sources.TRIPConfig{
			BaseURL:    src.BaseURL,
			APIKey:     src.APIKey,
			Timeout:    src.Timeout,
			MaxResults: src.MaxResults,
		}), src))
	}
	return adapters
}
