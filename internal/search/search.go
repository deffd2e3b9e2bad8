// Package search serves queries against a loaded vector index: top-k chunk
// retrieval and length-bounded context assembly.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/docsearch/internal/ai"
	"github.com/seanblong/docsearch/internal/index"
	"github.com/seanblong/docsearch/internal/store"
	"github.com/seanblong/docsearch/pkg/models"
)

const (
	// DefaultK is the number of results returned when the caller passes k <= 0
	// and the fixed candidate count used during context assembly.
	DefaultK = 5

	// DefaultMaxContextLength bounds assembled context when the caller passes
	// maxLength <= 0.
	DefaultMaxContextLength = 2000

	// contextSeparator joins distinct chunk blocks in assembled context.
	contextSeparator = "\n---\n"
)

// ErrNotReady is returned by query methods before an index has been loaded.
var ErrNotReady = errors.New("search: no index loaded")

// Options tunes retrieval behavior.
type Options struct {
	// MinScore discards hits scoring below the threshold before context
	// assembly. Zero disables filtering.
	MinScore float64
}

// Service owns the loaded retrieval state: the embedding client, the vector
// index, and the parallel documents/metadata arrays. Everything is read-only
// after Init, so concurrent queries need no coordination.
type Service struct {
	client ai.Client
	store  store.IndexStore
	opts   Options

	idx       *index.Flat
	documents []string
	metadata  []models.ChunkMeta
	loaded    bool
}

// New creates a search service. Call Init before serving queries.
func New(client ai.Client, st store.IndexStore, opts Options) *Service {
	return &Service{
		client: client,
		store:  st,
		opts:   opts,
	}
}

// Init loads the persisted index. A missing index is not an error: the
// service stays in a not-ready state that Health reports, so callers can run
// in a documented fallback mode. Corrupt artifacts do fail.
func (s *Service) Init(ctx context.Context) error {
	idx, documents, metadata, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrIndexNotFound) {
			log.Warn().Err(err).Msg("no persisted index, serving in not-ready state")
			return nil
		}
		return err
	}

	s.idx = idx
	s.documents = documents
	s.metadata = metadata
	s.loaded = true
	log.Info().Int("vectors", idx.Size()).Int("dim", idx.Dim()).Msg("index loaded")
	return nil
}

// Ready reports whether an index has been loaded.
func (s *Service) Ready() bool { return s.loaded }

// Health reports load state and vector count.
func (s *Service) Health() models.Health {
	h := models.Health{Loaded: s.loaded}
	if s.loaded {
		h.Count = s.idx.Size()
	}
	return h
}

// ListDocuments returns the unique source identifiers in the index, in
// first-seen order.
func (s *Service) ListDocuments() []string {
	seen := make(map[string]bool)
	var sources []string
	for _, m := range s.metadata {
		if !seen[m.Source] {
			seen[m.Source] = true
			sources = append(sources, m.Source)
		}
	}
	return sources
}

// Search embeds the query and returns the top-k chunks ranked by descending
// cosine similarity. An empty index yields an empty slice, not an error.
func (s *Service) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if !s.loaded {
		return nil, ErrNotReady
	}
	if k <= 0 {
		k = DefaultK
	}
	if s.idx.Size() == 0 {
		return []models.SearchResult{}, nil
	}

	vecs, err := s.client.EmbedBatch(ctx, []string{strings.TrimSpace(query)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
	}

	hits, err := s.idx.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		m := s.metadata[h.Position]
		results = append(results, models.SearchResult{
			Chunk: models.Chunk{
				Content:     s.documents[h.Position],
				Source:      m.Source,
				ChunkID:     m.ChunkID,
				TotalChunks: m.TotalChunks,
			},
			Score: float64(h.Score),
		})
	}
	return results, nil
}

// Context assembles a context string for the query from the top-ranked
// chunks, formatted as "[Source: <source>]\n<content>\n" blocks joined by
// "\n---\n", stopping before the total, separators included, would exceed
// maxLength. If the very first candidate alone exceeds the budget, its
// content is truncated to fit
// with room reserved for the source prefix and it becomes the sole piece.
// Non-first chunks are never truncated. An empty candidate set yields "".
func (s *Service) Context(ctx context.Context, query string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxContextLength
	}

	results, err := s.Search(ctx, query, DefaultK)
	if err != nil {
		return "", err
	}
	if s.opts.MinScore > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= s.opts.MinScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	if len(results) == 0 {
		return "", nil
	}

	var parts []string
	current := 0
	for i, r := range results {
		piece := fmt.Sprintf("[Source: %s]\n%s\n", r.Chunk.Source, r.Chunk.Content)
		cost := len(piece)
		if i > 0 {
			cost += len(contextSeparator)
		}
		if current+cost > maxLength {
			if i == 0 {
				if truncated, ok := truncatePiece(r.Chunk.Source, r.Chunk.Content, maxLength); ok {
					parts = append(parts, truncated)
				}
			}
			break
		}
		parts = append(parts, piece)
		current += cost
	}

	contextStr := strings.Join(parts, contextSeparator)
	log.Debug().Int("chars", len(contextStr)).Int("pieces", len(parts)).Msg("context assembled")
	return contextStr, nil
}

// truncatePiece shortens content so that prefix+content+newline fits within
// maxLength, backing off to a rune boundary so the cut never splits a
// multi-byte character. Returns false when the budget cannot even hold the
// prefix.
func truncatePiece(source, content string, maxLength int) (string, bool) {
	prefix := fmt.Sprintf("[Source: %s]\n", source)
	room := maxLength - len(prefix) - 1
	if room <= 0 {
		return "", false
	}
	if room < len(content) {
		for room > 0 && !utf8.RuneStart(content[room]) {
			room--
		}
		content = content[:room]
	}
	return prefix + content + "\n", true
}
