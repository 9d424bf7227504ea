package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// uniqueIDPrefix namespaces generated entity ids.
const uniqueIDPrefix = "knx_es_"

// Store is the durable unique_id → record mapping. Every mutating call
// is write-through: it fully commits before returning success.
type Store interface {
	// Add generates a fresh unique id, persists the record and returns
	// the id. Returns ErrDuplicateID on the unlikely collision.
	Add(ctx context.Context, platform Platform, cfg Config) (string, error)

	// Update replaces the config of an existing record. Platform is
	// immutable. Returns ErrNotFound if the id is unknown.
	Update(ctx context.Context, uniqueID string, cfg Config) (*Record, error)

	// Remove deletes a record. Returns ErrNotFound if the id is
	// unknown; repeated removal of the same id is an error, not a no-op.
	Remove(ctx context.Context, uniqueID string) error

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, uniqueID string) (*Record, error)

	// List returns all records in insertion order.
	List(ctx context.Context) ([]Record, error)
}

// SQLiteStore implements Store on the entities table.
// Insertion order for List comes from the implicit rowid.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// NewUniqueID generates a namespaced random entity identifier,
// e.g. "knx_es_0f7a9c...". Collisions are astronomically unlikely.
func NewUniqueID() string {
	return uniqueIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Add generates a fresh unique id and persists the record.
func (s *SQLiteStore) Add(ctx context.Context, platform Platform, cfg Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("%w: encoding config: %w", ErrPersistence, err)
	}

	uniqueID := NewUniqueID()
	now := time.Now().Unix()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (unique_id, platform, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		uniqueID, string(platform), string(data), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateID, uniqueID)
		}
		return "", fmt.Errorf("%w: inserting entity: %w", ErrPersistence, err)
	}

	return uniqueID, nil
}

// Update replaces the config of an existing record, leaving platform
// and creation time untouched.
func (s *SQLiteStore) Update(ctx context.Context, uniqueID string, cfg Config) (*Record, error) {
	existing, err := s.Get(ctx, uniqueID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding config: %w", ErrPersistence, err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET config = ?, updated_at = ? WHERE unique_id = ?`,
		string(data), now.Unix(), uniqueID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: updating entity: %w", ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite3 supports RowsAffected
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}

	return &Record{
		UniqueID:  uniqueID,
		Platform:  existing.Platform,
		Config:    cfg,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: now.UTC(),
	}, nil
}

// Remove deletes a record by id.
func (s *SQLiteStore) Remove(ctx context.Context, uniqueID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE unique_id = ?`, uniqueID)
	if err != nil {
		return fmt.Errorf("%w: deleting entity: %w", ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite3 supports RowsAffected
		return fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}
	return nil
}

// Get returns one record by id.
func (s *SQLiteStore) Get(ctx context.Context, uniqueID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT unique_id, platform, config, created_at, updated_at
		FROM entities WHERE unique_id = ?`, uniqueID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
		}
		return nil, fmt.Errorf("%w: querying entity: %w", ErrPersistence, err)
	}
	return rec, nil
}

// List returns every record, oldest insertion first.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unique_id, platform, config, created_at, updated_at
		FROM entities ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing entities: %w", ErrPersistence, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning entity: %w", ErrPersistence, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing entities: %w", ErrPersistence, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		uniqueID, platform, config string
		createdAt, updatedAt       int64
	)
	if err := row.Scan(&uniqueID, &platform, &config, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	cfg, err := DecodeConfig(Platform(platform), []byte(config))
	if err != nil {
		return nil, err
	}

	return &Record{
		UniqueID:  uniqueID,
		Platform:  Platform(platform),
		Config:    cfg,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
