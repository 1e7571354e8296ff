// Package bootstrap brings up process infrastructure in a fixed order:
// logger, database connection, migrations, then seeders.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/meterbot/core/config"
	coredatabase "github.com/m3rciful/meterbot/core/database"
	"github.com/m3rciful/meterbot/core/logger"
)

// Options select the config and, for tests, replace individual steps.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Modules  Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, *sqlx.DB) error
}

// Result is the infrastructure handed to the application.
type Result struct {
	DB *sqlx.DB
}

func (o *Options) withDefaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Run executes the steps in order. On failure after connecting, the
// database handle is closed before returning.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.withDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := prepare(ctx, opts, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Result{DB: db}, nil
}

func prepare(ctx context.Context, opts Options, db *sqlx.DB) error {
	if err := opts.Migrate(opts.Database, db); err != nil {
		return fmt.Errorf("bootstrap: migrations: %w", err)
	}
	seeded := 0
	for i, s := range opts.Modules.Seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, db); err != nil {
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
		seeded++
	}
	logger.Info(ctx, "db.seed", "seed.complete",
		slog.String("status", "ok"),
		slog.Int("count", seeded),
	)
	return nil
}
