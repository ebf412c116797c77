package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/fevertrack/internal/domain/auth"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
	"github.com/yanqian/fevertrack/internal/infra/alertsink"
	"github.com/yanqian/fevertrack/internal/infra/archive"
	"github.com/yanqian/fevertrack/internal/infra/config"
	"github.com/yanqian/fevertrack/internal/infra/episoderepo"
	"github.com/yanqian/fevertrack/internal/infra/kv"
	"github.com/yanqian/fevertrack/internal/infra/predictor"
	"github.com/yanqian/fevertrack/internal/infra/statusstore"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:       cfg.Auth.Secret,
		TokenTTL:     cfg.Auth.TokenTTL,
		OIDCIssuer:   cfg.Auth.OIDCIssuer,
		OIDCClientID: cfg.Auth.OIDCClientID,
	}
}

func provideTrackingConfig(cfg *config.Config) tracking.Config {
	return tracking.Config{
		StatusTTL:            cfg.Cache.StatusTTL,
		RecentAlertLimit:     cfg.Alerts.RecentLimit,
		DefaultPlateletCount: cfg.Predictor.DefaultPlateletCount,
	}
}

// provideEpisodeRepository prefers Postgres, then SQLite, then memory.
func provideEpisodeRepository(cfg *config.Config, logger *slog.Logger) tracking.Repository {
	if repo := providePostgresRepository(cfg, logger); repo != nil {
		return repo
	}
	if path := strings.TrimSpace(cfg.Storage.SQLitePath); path != "" {
		repo, err := episoderepo.NewSQLiteRepository(path)
		if err != nil {
			logger.Error("failed to open sqlite store, using memory repository", "path", path, "error", err)
			return episoderepo.NewMemoryRepository()
		}
		logger.Info("sqlite episode repository enabled", "path", path)
		return repo
	}
	logger.Info("no episode store configured, using memory repository")
	return episoderepo.NewMemoryRepository()
}

func providePostgresRepository(cfg *config.Config, logger *slog.Logger) *episoderepo.PostgresRepository {
	dsn := strings.TrimSpace(cfg.Storage.Postgres.DSN)
	if dsn == "" {
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, skipping postgres", "error", err)
		return nil
	}
	if cfg.Storage.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Storage.Postgres.MaxConns
	}
	if cfg.Storage.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Storage.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, skipping postgres", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, skipping postgres", "error", err)
		pool.Close()
		return nil
	}
	repo := episoderepo.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema setup failed, skipping postgres", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres episode repository enabled")
	return repo
}

func provideStatusStore(cfg *config.Config, logger *slog.Logger) tracking.StatusStore {
	if cfg.Cache.Redis.Enabled {
		client, err := kv.Connect(context.Background(), cfg.Cache.Redis.Addr)
		if err != nil {
			logger.Error("valkey unavailable, falling back to memory status store", "error", err)
		} else {
			logger.Info("valkey status store enabled", "addr", cfg.Cache.Redis.Addr)
			return statusstore.NewValkeyStore(client, cfg.Cache.Prefix)
		}
	}
	return statusstore.NewMemoryStore()
}

func provideAlerts(cfg *config.Config, logger *slog.Logger) tracking.Alerts {
	if cfg.Alerts.Redis.Enabled {
		client, err := kv.Connect(context.Background(), cfg.Alerts.Redis.Addr)
		if err != nil {
			logger.Error("valkey unavailable, falling back to memory alert sink", "error", err)
		} else {
			logger.Info("valkey alert sink enabled", "addr", cfg.Alerts.Redis.Addr, "channel", cfg.Alerts.Channel)
			return alertsink.NewValkeySink(client, cfg.Alerts.Prefix, cfg.Alerts.Channel, cfg.Alerts.MaxAlerts, logger)
		}
	}
	return alertsink.NewMemorySink(cfg.Alerts.MaxAlerts)
}

// providePredictor returns nil when no classifier is configured; readings are
// then evaluated on danger signs alone.
func providePredictor(cfg *config.Config, logger *slog.Logger) tracking.Predictor {
	if strings.TrimSpace(cfg.Predictor.BaseURL) == "" {
		logger.Info("predictor base url not set, predictions disabled")
		return nil
	}
	return predictor.NewClient(cfg.Predictor.BaseURL, cfg.Predictor.Path, cfg.Predictor.Token, cfg.Predictor.Timeout)
}

func provideArchiver(cfg *config.Config, logger *slog.Logger) tracking.Archiver {
	return archive.NewArchiver(provideObjectStorage(cfg, logger), logger)
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) archive.ObjectStorage {
	if !cfg.Archive.Enabled {
		return archive.NewMemoryStorage()
	}
	storage, err := archive.NewR2Storage(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.Region, logger)
	if err != nil {
		logger.Error("failed to initialize archive storage, using memory storage", "error", err)
		return archive.NewMemoryStorage()
	}
	logger.Info("r2 archive storage enabled", "bucket", cfg.Archive.Bucket)
	return storage
}
