package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvimport/internal/config"
	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/database"
	"github.com/JonMunkholm/csvimport/internal/logging"
	"github.com/JonMunkholm/csvimport/internal/storage"
	"github.com/JonMunkholm/csvimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"record_store", cfg.Database.Backend,
		"session_store", cfg.Session.Backend,
		"storage", cfg.Storage.Backend,
		"import_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	reg := core.NewRegistry()
	if err := reg.LoadSchemas(cfg.Schema.Path); err != nil {
		slog.Error("failed to load schemas", "path", cfg.Schema.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("schemas registered", "count", reg.Count())

	recordBackend := strings.ToLower(cfg.Database.Backend)
	sessionBackend := strings.ToLower(cfg.Session.Backend)

	var pool *pgxpool.Pool
	if recordBackend == "postgres" || sessionBackend == "postgres" {
		pool, err = connectDatabase(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.Migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
	}

	var records core.RecordStore
	switch recordBackend {
	case "postgres":
		records = core.NewPostgresRecordStore(pool)
	default:
		slog.Warn("using in-memory record store, records are lost on restart")
		records = core.NewMemoryRecordStore()
	}

	var configs core.ConfigStore
	switch sessionBackend {
	case "postgres":
		configs = core.NewPostgresConfigStore(pool, cfg.Session.TTL)
	case "redis":
		client, err := core.ConnectRedis(ctx, cfg.Session.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		configs = core.NewRedisConfigStore(client, cfg.Session.TTL)
	default:
		configs = core.NewMemoryConfigStore()
	}

	objects, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open attachment storage", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(reg, records, configs, core.ServiceOptions{
		UploadDir: cfg.Upload.Dir,
		Attachments: &storage.Attacher{
			Store:      objects,
			SourceRoot: cfg.Storage.SourceRoot,
			Client:     &http.Client{Timeout: cfg.Storage.FetchTimeout},
			MaxBytes:   cfg.Storage.MaxBytes,
		},
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		BatchTimeout:  cfg.Upload.BatchTimeout,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Dispatched batches are never cancelled; wait for them to finish
		status := service.Limiter.Status()
		if status.Active > 0 {
			slog.Info("waiting for batches to complete", "active", status.Active)
			if err := service.WaitForBatches(shutdownCtx); err != nil {
				slog.Warn("batches did not complete in time", "error", err)
			} else {
				slog.Info("all batches completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if strings.EqualFold(cfg.Backend, "minio") {
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return storage.NewLocalStore(cfg.Dir)
}
