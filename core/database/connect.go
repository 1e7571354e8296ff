package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/meterbot/core/logger"
)

const (
	// A postgres container may still be starting when the bot boots.
	postgresStartupWait = 30 * time.Second
	pingInterval        = 2 * time.Second
	pingTimeout         = 5 * time.Second
)

// Connect opens and pings the configured database and sizes the pool.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx := logger.Background()
	start := time.Now()

	db, err := open(ctx, cfg)
	attrs := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("db", target(cfg)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Error(ctx, "db", "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	if cfg.Driver == DriverSQLite {
		// An in-memory database lives only as long as its connection.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	logger.Info(ctx, "db", "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("count", cfg.MaxConnections),
	)...)
	return db, nil
}

func open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	wait := time.Duration(0)
	if cfg.Driver == DriverPostgres {
		wait = postgresStartupWait
	}
	if err := pingUntil(ctx, db, wait); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// pingUntil pings db every pingInterval until it answers or wait elapses.
// A zero wait pings once.
func pingUntil(ctx context.Context, db *sqlx.DB, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pctx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().Add(pingInterval).After(deadline) {
			return fmt.Errorf("database not reachable after %d attempt(s): %w", attempt, err)
		}
		logger.Debug(ctx, "db", "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pingInterval):
		}
	}
}

func target(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.Path
	}
	return cfg.Host + ":" + cfg.Port + "/" + cfg.Name
}
