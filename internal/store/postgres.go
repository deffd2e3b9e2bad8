package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/docsearch/internal/index"
	"github.com/seanblong/docsearch/pkg/models"
)

// PGStore persists chunks and their vectors in Postgres with the pgvector
// extension. Rows carry an explicit position column so a load can rebuild the
// in-memory index in exactly the order it was saved; retrieval itself always
// runs against the rebuilt in-memory index.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store connected to the given database URL.
func NewPGStore(ctx context.Context, url string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PGStore{pool: p}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

// Migrate applies necessary schema setup for the given embedding dimension.
func (s *PGStore) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  position     INT PRIMARY KEY,
  content      TEXT NOT NULL,
  source       TEXT NOT NULL,
  chunk_id     INT NOT NULL,
  total_chunks INT NOT NULL,
  embedding    vector(%d) NOT NULL
);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// Exists reports whether any chunks are already persisted.
func (s *PGStore) Exists(ctx context.Context) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM chunks").Scan(&count)
	if err != nil {
		if isUndefinedTable(err) {
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}

// Save inserts all rows in index order within one transaction.
func (s *PGStore) Save(ctx context.Context, idx *index.Flat, documents []string, metadata []models.ChunkMeta) error {
	if len(documents) != len(metadata) || len(documents) != idx.Size() {
		return fmt.Errorf("%w: %d documents, %d metadata, %d vectors", ErrCorruptIndex, len(documents), len(metadata), idx.Size())
	}
	if exists, err := s.Exists(ctx); err != nil {
		return err
	} else if exists {
		return ErrIndexExists
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		INSERT INTO chunks (position, content, source, chunk_id, total_chunks, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range documents {
		_, err := tx.Exec(ctx, q,
			i, documents[i], metadata[i].Source, metadata[i].ChunkID, metadata[i].TotalChunks,
			pgvector.NewVector(idx.Vector(i)),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

// Load reads all rows ordered by position and rebuilds the in-memory index.
func (s *PGStore) Load(ctx context.Context) (*index.Flat, []string, []models.ChunkMeta, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT position, content, source, chunk_id, total_chunks, embedding FROM chunks ORDER BY position")
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil, nil, ErrIndexNotFound
		}
		return nil, nil, nil, err
	}
	defer rows.Close()

	var (
		documents []string
		metadata  []models.ChunkMeta
		vectors   [][]float32
	)
	for rows.Next() {
		var (
			position int
			doc      string
			meta     models.ChunkMeta
			vec      pgvector.Vector
		)
		if err := rows.Scan(&position, &doc, &meta.Source, &meta.ChunkID, &meta.TotalChunks, &vec); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		if position != len(documents) {
			return nil, nil, nil, fmt.Errorf("%w: position %d out of order", ErrCorruptIndex, position)
		}
		documents = append(documents, doc)
		metadata = append(metadata, meta)
		vectors = append(vectors, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}
	if len(documents) == 0 {
		return nil, nil, nil, ErrIndexNotFound
	}

	idx, err := index.NewFlat(len(vectors[0]))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if err := idx.Add(vectors); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return idx, documents, metadata, nil
}

// Ping checks the database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
