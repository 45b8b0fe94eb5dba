package index

import (
	"context"

	"github.com/starford/tagweave/internal/models"
)

// EntityIndex is the set of index operations the rest of the service uses.
type EntityIndex interface {
	UpsertEntity(meta models.EntityMetadata, e models.Entity) error
	DeleteByPath(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Entities(ctx context.Context) ([]models.Entity, error)
	EntityByID(ctx context.Context, id string) (models.Entity, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

var _ EntityIndex = (*DB)(nil)
