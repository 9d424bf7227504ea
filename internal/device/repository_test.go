package device

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE devices (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			area_id    TEXT,
			created_at INTEGER NOT NULL
		) STRICT`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return NewSQLiteRegistry(db)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	dev, err := reg.Create(ctx, "Kitchen actuator", "area-kitchen")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(dev.ID, "knx_vdev_") {
		t.Errorf("ID = %q, want knx_vdev_ prefix", dev.ID)
	}

	got, err := reg.Get(ctx, dev.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Kitchen actuator" || got.AreaID != "area-kitchen" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestRegistry_CreateBlankName(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Create(context.Background(), "   ", ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Create() error = %v, want ErrInvalidName", err)
	}
}

func TestRegistry_Exists(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	dev, err := reg.Create(ctx, "Actuator", "")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := reg.Exists(ctx, dev.ID)
	if err != nil || !ok {
		t.Errorf("Exists(%s) = %v, %v, want true", dev.ID, ok, err)
	}
	ok, err = reg.Exists(ctx, "knx_vdev_missing")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v, want false", ok, err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	dev, err := reg.Create(ctx, "Actuator", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := reg.Delete(ctx, dev.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := reg.Get(ctx, dev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := reg.Delete(ctx, dev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_ListOrderedByName(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		if _, err := reg.Create(ctx, name, ""); err != nil {
			t.Fatal(err)
		}
	}

	devices, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Alpha", "Mid", "Zeta"}
	if len(devices) != len(want) {
		t.Fatalf("List() returned %d devices", len(devices))
	}
	for i, name := range want {
		if devices[i].Name != name {
			t.Errorf("devices[%d].Name = %q, want %q", i, devices[i].Name, name)
		}
	}
}
