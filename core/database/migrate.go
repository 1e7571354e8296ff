package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/migrations"
)

// RunMigrations applies all up migrations embedded for the configured driver.
// SQLite migrates through the open handle so in-memory databases keep their schema.
func RunMigrations(cfg Config, db *sqlx.DB) error {
	ctx := logger.Background()
	dir := cfg.Driver
	files := listMigrationFiles(migrations.FS, dir)
	preview := files
	if len(preview) > 6 {
		preview = preview[:6]
	}
	logger.Debug(ctx, "db.migrate", "migrations.resolved",
		slog.String("driver", cfg.Driver),
		slog.Int("count", len(files)),
		slog.String("payload", strings.Join(preview, ",")),
		slog.Bool("files_truncated", len(files) > len(preview)),
	)

	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := newMigrate(cfg, db, src)
	if err != nil {
		logger.Error(ctx, "db.migrate", "migrations.init",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if cfg.Driver == DriverPostgres {
		defer m.Close()
	}

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, "db.migrate", "migrations.summary",
			slog.String("status", "skip"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("count", 0),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return nil
	default:
		logger.Error(ctx, "db.migrate", "migrations.apply",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	logger.Info(ctx, "db.migrate", "migrations.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", countApplied(files, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func newMigrate(cfg Config, db *sqlx.DB, src source.Driver) (*migrate.Migrate, error) {
	switch cfg.Driver {
	case DriverSQLite:
		drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", src, DriverSQLite, drv)
	case DriverPostgres:
		return migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	}
	return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, path.Base(name))
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	parts := strings.SplitN(name, "_", 2)
	v, _ := strconv.ParseUint(parts[0], 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	if to <= from {
		return 0
	}
	c := 0
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			c++
		}
	}
	return c
}
