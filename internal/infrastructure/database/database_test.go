package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpen(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(Config{Path: path, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestMigrate(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	defer func() { MigrationsFS, MigrationsDir = origFS, origDir }()

	MigrationsFS = fstest.MapFS{
		"001_create_widgets.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"),
		},
		"002_add_colour.up.sql": &fstest.MapFile{
			Data: []byte("ALTER TABLE widgets ADD COLUMN colour TEXT"),
		},
		"001_create_widgets.down.sql": &fstest.MapFile{
			Data: []byte("DROP TABLE widgets"),
		},
	}
	MigrationsDir = "."

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Both up migrations applied, down file ignored.
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2", count)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO widgets (name, colour) VALUES ('a', 'red')"); err != nil {
		t.Errorf("schema not applied: %v", err)
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations after rerun = %d, want 2", count)
	}
}

func TestMigrate_FailureStopsRun(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	defer func() { MigrationsFS, MigrationsDir = origFS, origDir }()

	MigrationsFS = fstest.MapFS{
		"001_good.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE good (id INTEGER PRIMARY KEY)"),
		},
		"002_bad.up.sql": &fstest.MapFile{
			Data: []byte("THIS IS NOT SQL"),
		},
	}
	MigrationsDir = "."

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error, got nil")
	}

	// The first migration stays applied.
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("applied migrations = %d, want 1", count)
	}
}
