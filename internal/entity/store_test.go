package entity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE entities (
			unique_id  TEXT PRIMARY KEY,
			platform   TEXT NOT NULL,
			config     TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		) STRICT`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return NewSQLiteStore(db)
}

func testSwitchConfig(name string) SwitchConfig {
	return SwitchConfig{
		Name:         name,
		SyncState:    SyncStateInit,
		Address:      []string{"1/1/1"},
		StateAddress: []string{"1/1/2"},
	}
}

func TestStore_AddAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, PlatformSwitch, testSwitchConfig("Kitchen"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !strings.HasPrefix(id, "knx_es_") {
		t.Errorf("id = %q, want knx_es_ prefix", id)
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Platform != PlatformSwitch {
		t.Errorf("Platform = %q", rec.Platform)
	}
	sw, ok := rec.Config.(SwitchConfig)
	if !ok {
		t.Fatalf("Config type = %T", rec.Config)
	}
	if sw.Name != "Kitchen" || sw.Address[0] != "1/1/1" {
		t.Errorf("round-trip mismatch: %+v", sw)
	}
}

func TestStore_FreshIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for range 20 {
		id, err := store.Add(ctx, PlatformSwitch, testSwitchConfig("x"))
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("id %q issued twice", id)
		}
		seen[id] = true
	}
}

func TestStore_ListInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	names := []string{"first", "second", "third"}
	ids := make([]string, len(names))
	for i, name := range names {
		id, err := store.Add(ctx, PlatformSwitch, testSwitchConfig(name))
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		ids[i] = id
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List() returned %d records", len(records))
	}
	for i, rec := range records {
		if rec.UniqueID != ids[i] {
			t.Errorf("records[%d] = %s, want %s", i, rec.UniqueID, ids[i])
		}
	}
}

func TestStore_Update(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, PlatformSwitch, testSwitchConfig("Kitchen"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	cfg := testSwitchConfig("Kitchen")
	cfg.DeviceClass = DeviceClassOutlet
	rec, err := store.Update(ctx, id, cfg)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec.Config.(SwitchConfig).DeviceClass != DeviceClassOutlet {
		t.Error("returned record does not reflect update")
	}
	if rec.Platform != PlatformSwitch {
		t.Error("platform changed on update")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Config.(SwitchConfig).DeviceClass != DeviceClassOutlet {
		t.Error("stored record does not reflect update")
	}
}

func TestStore_UpdateNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Update(context.Background(), "knx_es_missing", testSwitchConfig("x"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, PlatformSwitch, testSwitchConfig("Kitchen"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := store.Remove(ctx, id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after remove error = %v, want ErrNotFound", err)
	}

	// Repeated delete is an error, not a no-op.
	if err := store.Remove(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}
