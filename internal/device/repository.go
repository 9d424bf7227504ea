package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Registry defines the persistence operations for virtual devices.
type Registry interface {
	// Create registers a new device with a generated id and returns it.
	Create(ctx context.Context, name, areaID string) (*Device, error)

	// Get retrieves a device by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Device, error)

	// List returns all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Delete removes a device by id. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a device id is registered.
	Exists(ctx context.Context, id string) (bool, error)
}

// SQLiteRegistry implements Registry on the devices table.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates a registry over an open SQLite connection.
func NewSQLiteRegistry(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// Create registers a new device.
func (r *SQLiteRegistry) Create(ctx context.Context, name, areaID string) (*Device, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	dev := &Device{
		ID:        NewID(),
		Name:      name,
		AreaID:    areaID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, area_id, created_at)
		VALUES (?, ?, ?, ?)`,
		dev.ID, dev.Name, nullable(dev.AreaID), dev.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting device: %w", err)
	}

	return dev, nil
}

// Get retrieves a device by id.
func (r *SQLiteRegistry) Get(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, area_id, created_at FROM devices WHERE id = ?`, id)

	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return dev, nil
}

// List returns all devices ordered by name.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, area_id, created_at FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *dev)
	}
	return devices, rows.Err()
}

// Delete removes a device by id.
func (r *SQLiteRegistry) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite3 supports RowsAffected
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Exists reports whether a device id is registered.
func (r *SQLiteRegistry) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM devices WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking device existence: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var (
		dev       Device
		areaID    sql.NullString
		createdAt int64
	)
	if err := row.Scan(&dev.ID, &dev.Name, &areaID, &createdAt); err != nil {
		return nil, err
	}
	dev.AreaID = areaID.String
	dev.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &dev, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
