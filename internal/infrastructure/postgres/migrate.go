package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/internal/config"
)

// RunMigrations brings the console_storage schema up to date when enabled.
// The postgres store expects the table to exist, so this runs before it opens.
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	if cfg == nil || !cfg.Migrations.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(cfg.Migrations.Path); err != nil {
		return fmt.Errorf("migrations path: %w", err)
	}

	connCfg, err := pgx.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL(cfg.Migrations.Path), connCfg.Database, driver)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info("database migrations applied",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func sourceURL(path string) string {
	return fmt.Sprintf("file://%s", filepath.ToSlash(path))
}
