package database

import (
	"strings"
	"testing"
)

func TestConfigNormalize(t *testing.T) {
	c := Config{Driver: " SQLite ", MaxConnections: 8}
	if err := c.Normalize(); err != nil {
		t.Fatal(err)
	}
	if c.Driver != DriverSQLite || c.Path != "meterbot.db" || c.MaxConnections != 1 {
		t.Fatalf("sqlite defaults = %+v", c)
	}

	pg := Config{Driver: "postgres", Host: "db", Name: "meters", User: "bot", Password: "p@ss word"}
	if err := pg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if pg.Port != "5432" || pg.SSLMode != "disable" || pg.MaxConnections != 5 {
		t.Fatalf("postgres defaults = %+v", pg)
	}
	if u := pg.URL(); !strings.HasPrefix(u, "postgres://bot:p%40ss%20word@db:5432/meters?sslmode=disable") {
		t.Fatalf("URL = %s", u)
	}

	if err := (&Config{Driver: "postgres"}).Normalize(); err == nil {
		t.Fatal("postgres without host accepted")
	}
	if err := (&Config{Driver: "mysql"}).Normalize(); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("file.db"); got != "file.db?_foreign_keys=on&_busy_timeout=5000" {
		t.Fatalf("dsn = %s", got)
	}
	if got := sqliteDSN("file::memory:?cache=shared"); !strings.HasSuffix(got, "cache=shared&_foreign_keys=on&_busy_timeout=5000") {
		t.Fatalf("dsn = %s", got)
	}
}

func TestConnectAndMigrateInMemory(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: ":memory:"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(cfg, db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	// A second run is a no-op.
	if err := RunMigrations(cfg, db); err != nil {
		t.Fatalf("RunMigrations again: %v", err)
	}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("users table missing: %v", err)
	}
}

func TestMigrationFileHelpers(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_index.up.sql", "000003_more.up.sql"}
	if v := parseVersion(files[1]); v != 2 {
		t.Fatalf("parseVersion = %d", v)
	}
	if n := countApplied(files, 1, 3); n != 2 {
		t.Fatalf("countApplied = %d", n)
	}
	if n := countApplied(files, 3, 3); n != 0 {
		t.Fatalf("countApplied no-op = %d", n)
	}
}
