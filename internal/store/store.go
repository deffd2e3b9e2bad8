// Package store persists a built vector index together with its parallel
// documents and metadata arrays. The alignment invariant (position i in the
// index corresponds to position i in both arrays) is validated on every load.
package store

import (
	"context"
	"errors"

	"github.com/seanblong/docsearch/internal/index"
	"github.com/seanblong/docsearch/pkg/models"
)

var (
	// ErrIndexNotFound means no persisted index exists at the configured
	// location. Callers should surface this as "not ready", not a crash.
	ErrIndexNotFound = errors.New("store: index not found")

	// ErrCorruptIndex means persisted artifacts exist but cannot be parsed or
	// are mutually inconsistent.
	ErrCorruptIndex = errors.New("store: corrupt index")

	// ErrIndexExists means a save was attempted over an existing index.
	// Rebuilding requires explicit deletion first.
	ErrIndexExists = errors.New("store: index already exists")
)

// IndexStore defines the methods a persistence backend must implement.
type IndexStore interface {
	// Exists reports whether a persisted index is already present.
	Exists(ctx context.Context) (bool, error)

	// Save writes the index and parallel arrays. It either fully succeeds or
	// leaves any prior state untouched, and fails with ErrIndexExists when an
	// index is already present.
	Save(ctx context.Context, idx *index.Flat, documents []string, metadata []models.ChunkMeta) error

	// Load reads the index and parallel arrays back. It fails with
	// ErrIndexNotFound when nothing is persisted and ErrCorruptIndex when the
	// artifacts cannot be parsed or violate the alignment invariant.
	Load(ctx context.Context) (*index.Flat, []string, []models.ChunkMeta, error)
}
