package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/draftworks/schemadesk/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed schema store. Field definitions are kept
// as a JSON column; the row's updated_at is the optimistic-concurrency token.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// CreateSchema inserts a new schema row.
func (s *SQLiteStore) CreateSchema(ctx context.Context, in types.NewSchema) (*types.Schema, error) {
	now := time.Now().UTC()
	schema := types.Schema{
		ID:          ulid.Make().String(),
		Name:        in.Name,
		Description: in.Description,
		Fields:      in.Fields,
		IsDefault:   in.IsDefault,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if schema.Fields == nil {
		schema.Fields = []types.Field{}
	}
	assignFieldIDs(schema.Fields)

	fieldsJSON, err := json.Marshal(schema.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO component_schemas (id, name, description, fields, is_default, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, schema.ID, schema.Name, schema.Description, string(fieldsJSON),
		boolToInt(schema.IsDefault), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert schema: %w", err)
	}

	if schema.IsDefault {
		if err := s.clearOtherDefaults(ctx, schema.ID); err != nil {
			return nil, err
		}
	}

	return &schema, nil
}

// GetSchema fetches a single schema by ID.
func (s *SQLiteStore) GetSchema(ctx context.Context, id string) (*types.Schema, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, fields, is_default, active, created_at, updated_at
		FROM component_schemas WHERE id = ?
	`, id)
	return scanSchema(row)
}

// ListSchemas returns all schemas, oldest first. Inactive schemas are
// excluded unless includeInactive is set.
func (s *SQLiteStore) ListSchemas(ctx context.Context, includeInactive bool) ([]types.Schema, error) {
	query := `
		SELECT id, name, description, fields, is_default, active, created_at, updated_at
		FROM component_schemas
	`
	if !includeInactive {
		query += " WHERE active = 1"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []types.Schema
	for rows.Next() {
		schema, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, *schema)
	}
	return schemas, rows.Err()
}

// UpdateSchema applies a partial update under optimistic concurrency.
// When the stored updated_at is newer than patch.BaseVersion and Force is
// not set, it returns the current row alongside ErrVersionConflict so the
// caller can build a conflict record without a second round trip.
func (s *SQLiteStore) UpdateSchema(ctx context.Context, id string, patch types.SchemaPatch) (*types.Schema, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	current, err := scanSchema(tx.QueryRowContext(ctx, `
		SELECT id, name, description, fields, is_default, active, created_at, updated_at
		FROM component_schemas WHERE id = ?
	`, id))
	if err != nil {
		return nil, err
	}

	if !patch.Force && current.UpdatedAt.After(patch.BaseVersion) {
		return current, ErrVersionConflict
	}

	updated := current.Clone()
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Fields != nil {
		updated.Fields = *patch.Fields
		assignFieldIDs(updated.Fields)
	}
	if patch.IsDefault != nil {
		updated.IsDefault = *patch.IsDefault
	}
	if patch.Active != nil {
		updated.Active = *patch.Active
	}

	// The token must move strictly forward even on sub-millisecond updates.
	now := time.Now().UTC()
	if !now.After(current.UpdatedAt) {
		now = current.UpdatedAt.Add(time.Millisecond)
	}
	updated.UpdatedAt = now

	fieldsJSON, err := json.Marshal(updated.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE component_schemas
		SET name = ?, description = ?, fields = ?, is_default = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, updated.Name, updated.Description, string(fieldsJSON),
		boolToInt(updated.IsDefault), boolToInt(updated.Active), formatTime(now), id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("update schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	if updated.IsDefault && !current.IsDefault {
		if err := s.clearOtherDefaults(ctx, id); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

// DeleteSchema deactivates a schema. Rows are never physically removed so
// components referencing the schema keep resolving.
func (s *SQLiteStore) DeleteSchema(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE component_schemas SET active = 0, is_default = 0, updated_at = ?
		WHERE id = ? AND active = 1
	`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSchemas returns the number of active schemas.
func (s *SQLiteStore) CountSchemas(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM component_schemas WHERE active = 1").Scan(&count)
	return count, err
}

// clearOtherDefaults enforces the single-default invariant.
func (s *SQLiteStore) clearOtherDefaults(ctx context.Context, keepID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE component_schemas SET is_default = 0 WHERE id != ? AND is_default = 1", keepID)
	if err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	return nil
}

// assignFieldIDs generates IDs for fields that don't have one yet and fills
// in display order gaps from slice position.
func assignFieldIDs(fields []types.Field) {
	for i := range fields {
		if fields[i].ID == "" {
			fields[i].ID = ulid.Make().String()
		}
		fields[i].DisplayOrder = i
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchema(row rowScanner) (*types.Schema, error) {
	var (
		schema               types.Schema
		fieldsJSON           string
		isDefault, active    int
		createdAt, updatedAt string
	)
	err := row.Scan(&schema.ID, &schema.Name, &schema.Description, &fieldsJSON,
		&isDefault, &active, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schema: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &schema.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	schema.IsDefault = isDefault == 1
	schema.Active = active == 1
	if schema.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if schema.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &schema, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
