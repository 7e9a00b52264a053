package store

import (
	"context"

	"github.com/draftworks/schemadesk/internal/types"
)

// Store defines the interface contract for schema persistence.
type Store interface {
	CreateSchema(ctx context.Context, s types.NewSchema) (*types.Schema, error)
	GetSchema(ctx context.Context, id string) (*types.Schema, error)
	ListSchemas(ctx context.Context, includeInactive bool) ([]types.Schema, error)
	// UpdateSchema applies a partial update. It fails with ErrVersionConflict
	// when the stored row is newer than patch.BaseVersion, unless patch.Force
	// is set. On conflict the returned schema is the server's current row.
	UpdateSchema(ctx context.Context, id string, patch types.SchemaPatch) (*types.Schema, error)
	DeleteSchema(ctx context.Context, id string) error
	CountSchemas(ctx context.Context) (int64, error)
	Close() error
}
