package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/internal/config"
	pgInfra "github.com/fastygo/qcconsole/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/qcconsole/internal/infrastructure/redis"
	"github.com/fastygo/qcconsole/pkg/logger"
	"github.com/fastygo/qcconsole/repository"
	boltrepo "github.com/fastygo/qcconsole/repository/bolt"
	pgrepo "github.com/fastygo/qcconsole/repository/postgres"
	redisrepo "github.com/fastygo/qcconsole/repository/redis"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qc-console",
		Short: "Session gateway for the QC management backend",
		Long: `qc-console keeps an authenticated session against the QC backend,
guards console routes by role and forwards data calls with the stored
bearer token.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		statusCmd(),
		logoutCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger every command shares.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, zapLogger, nil
}

// openStore opens the configured session storage. The returned store owns
// its connection and releases it on Close.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.KeyValueStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		client, err := redisInfra.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return redisrepo.NewKeyValueStore(client, cfg.Storage.Origin), nil
	case config.StoragePostgres:
		if err := pgInfra.RunMigrations(cfg, log); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		store, err := pgrepo.NewKeyValueStore(ctx, pool, cfg.Storage.Origin)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		return store, nil
	default:
		store, err := boltrepo.Open(cfg.Storage.BoltPath, cfg.Storage.Origin)
		if err != nil {
			return nil, fmt.Errorf("bolt: %w", err)
		}
		return store, nil
	}
}
