package database

import (
	"path/filepath"
	"testing"

	"ledgersync/internal/config"
)

func TestConfig(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		c := &Config{Driver: DriverSQLite, Path: "/var/lib/ledgersync/data.db"}
		if err := c.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := c.MigrateURL(); got != "sqlite3:///var/lib/ledgersync/data.db" {
			t.Errorf("MigrateURL = %q", got)
		}
		if got := c.DSN(); got != c.Path {
			t.Errorf("DSN = %q", got)
		}
	})

	t.Run("postgres", func(t *testing.T) {
		c := NewConfig(&config.Config{
			DBDriver: DriverPostgres, DBHost: "db", DBPort: "5432",
			DBUser: "ledger", DBPassword: "p@ss", DBName: "ledger", DBSSLMode: "disable",
		})
		if got := c.MigrateURL(); got != "postgres://ledger:p%40ss@db:5432/ledger?sslmode=disable" {
			t.Errorf("MigrateURL = %q", got)
		}
		if got := c.DSN(); got != "host=db port=5432 user=ledger password=p@ss dbname=ledger sslmode=disable" {
			t.Errorf("DSN = %q", got)
		}
	})

	t.Run("unknown_driver", func(t *testing.T) {
		if err := (&Config{Driver: "mysql"}).Validate(); err == nil {
			t.Error("expected error for unsupported driver")
		}
		if err := (&Config{Driver: DriverSQLite}).Validate(); err == nil {
			t.Error("expected error for empty sqlite path")
		}
	})
}

func TestManager_RunMigrations(t *testing.T) {
	cfg := &Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "ledger.db")}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	if err := m.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	// A second run is a no-op.
	if err := m.RunMigrations(); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}

	for _, table := range []string{"documents", "settings", "sync_logs"} {
		if !m.DB().Migrator().HasTable(table) {
			t.Errorf("table %s missing after migrations", table)
		}
	}

	mig, err := NewMigrator(cfg)
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	defer mig.Close()
	version, dirty, err := mig.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 3 || dirty {
		t.Errorf("version = %d dirty = %v, want 3 clean", version, dirty)
	}
}
