// Package indexer implements the one-shot build pipeline: load documents,
// chunk, embed, index, persist. Stages run linearly; a stage failure aborts
// the run and reports which stage failed.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/docsearch/internal/ai"
	"github.com/seanblong/docsearch/internal/chunker"
	"github.com/seanblong/docsearch/internal/index"
	"github.com/seanblong/docsearch/internal/store"
	"github.com/seanblong/docsearch/pkg/models"
)

// Stage names a pipeline stage for error reporting.
type Stage string

const (
	StagePrecheck  Stage = "precheck"
	StageLoadChunk Stage = "load-chunk"
	StageEmbed     Stage = "embed"
	StagePersist   Stage = "index-persist"
)

const (
	// DefaultWindow and DefaultOverlap are the chunking defaults, in words.
	DefaultWindow  = 500
	DefaultOverlap = 50
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Indexer runs the build pipeline over a directory of plain-text documents.
type Indexer struct {
	Store      store.IndexStore
	Client     ai.Client
	DocsDir    string
	Window     int
	Overlap    int
	Walker     FileSystemWalker
	FileReader FileReader
}

// Summary reports what a pipeline run produced.
type Summary struct {
	Documents int // documents successfully chunked
	Skipped   int // documents skipped due to read errors or empty content
	Chunks    int
	Vectors   int
}

// New creates a new Indexer instance.
func New(st store.IndexStore, client ai.Client, docsDir string, window, overlap int) *Indexer {
	if window <= 0 {
		window = DefaultWindow
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Indexer{
		Store:      st,
		Client:     client,
		DocsDir:    docsDir,
		Window:     window,
		Overlap:    overlap,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// NewWithDependencies creates a new Indexer instance with custom dependencies for testing
func NewWithDependencies(st store.IndexStore, client ai.Client, docsDir string, window, overlap int, walker FileSystemWalker, fileReader FileReader) *Indexer {
	ix := New(st, client, docsDir, window, overlap)
	ix.Walker = walker
	ix.FileReader = fileReader
	return ix
}

// Run executes the pipeline. Build-time failures abort the whole run; no
// partial state is persisted.
func (ix *Indexer) Run(ctx context.Context) (Summary, error) {
	paths, err := ix.precheck(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("stage %s: %w", StagePrecheck, err)
	}

	chunks, skipped, err := ix.loadAndChunk(paths)
	if err != nil {
		return Summary{}, fmt.Errorf("stage %s: %w", StageLoadChunk, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.Client.EmbedBatch(ctx, texts)
	if err != nil {
		return Summary{}, fmt.Errorf("stage %s: %w", StageEmbed, err)
	}
	if len(vectors) != len(chunks) {
		return Summary{}, fmt.Errorf("stage %s: expected %d vectors, got %d", StageEmbed, len(chunks), len(vectors))
	}

	idx, err := ix.indexAndPersist(ctx, chunks, vectors, texts)
	if err != nil {
		return Summary{}, fmt.Errorf("stage %s: %w", StagePersist, err)
	}

	summary := Summary{
		Documents: countSources(chunks),
		Skipped:   skipped,
		Chunks:    len(chunks),
		Vectors:   idx.Size(),
	}
	log.Info().
		Int("documents", summary.Documents).
		Int("skipped", summary.Skipped).
		Int("chunks", summary.Chunks).
		Int("vectors", summary.Vectors).
		Msg("pipeline complete")
	return summary, nil
}

// precheck verifies the docs directory holds at least one eligible document
// and that no index exists yet. Rebuilding requires explicit deletion first.
func (ix *Indexer) precheck(ctx context.Context) ([]string, error) {
	fi, err := os.Stat(ix.DocsDir)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("documents directory not found: %s", ix.DocsDir)
	}

	exists, err := ix.Store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w; delete it to rebuild", store.ErrIndexExists)
	}

	// Sorted walk keeps chunk and vector order deterministic across runs.
	var paths []string
	walkErr := ix.Walker.Walk(ix.DocsDir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			if eligible(path) {
				paths = append(paths, path)
			}
			return nil
		},
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no eligible documents in %s", ix.DocsDir)
	}
	return paths, nil
}

// loadAndChunk reads each document and splits it into tagged chunks. A
// per-document read failure is logged and skipped; it never aborts the run.
func (ix *Indexer) loadAndChunk(paths []string) ([]models.Chunk, int, error) {
	var chunks []models.Chunk
	skipped := 0
	for _, path := range paths {
		b, err := ix.FileReader.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read document, skipping")
			skipped++
			continue
		}

		content := strings.TrimSpace(string(b))
		if content == "" {
			log.Warn().Str("path", path).Msg("empty document, skipping")
			skipped++
			continue
		}

		pieces, err := chunker.Split(content, ix.Window, ix.Overlap)
		if err != nil {
			// Misconfigured window/overlap is fatal, not per-document.
			return nil, 0, err
		}

		source := filepath.Base(path)
		for i, piece := range pieces {
			chunks = append(chunks, models.Chunk{
				Content:     piece,
				Source:      source,
				ChunkID:     i,
				TotalChunks: len(pieces),
			})
		}
		log.Info().Str("source", source).Int("chunks", len(pieces)).Msg("document chunked")
	}
	return chunks, skipped, nil
}

// indexAndPersist builds a fresh index from the vectors, in chunk order, and
// saves it with the parallel arrays.
func (ix *Indexer) indexAndPersist(ctx context.Context, chunks []models.Chunk, vectors [][]float32, documents []string) (*index.Flat, error) {
	idx, err := index.NewFlat(ix.Client.Dim())
	if err != nil {
		return nil, err
	}
	if err := idx.Add(vectors); err != nil {
		return nil, err
	}

	metadata := make([]models.ChunkMeta, len(chunks))
	for i, c := range chunks {
		metadata[i] = c.Meta()
	}
	if err := ix.Store.Save(ctx, idx, documents, metadata); err != nil {
		return nil, err
	}
	return idx, nil
}

// eligible returns true for plain-text documents.
func eligible(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".txt")
}

func countSources(chunks []models.Chunk) int {
	seen := make(map[string]bool)
	for _, c := range chunks {
		seen[c.Source] = true
	}
	return len(seen)
}
