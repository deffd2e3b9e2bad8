package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/seanblong/docsearch/internal/index"
	"github.com/seanblong/docsearch/pkg/models"
)

const (
	indexFile    = "index.bin"
	metadataFile = "meta.json.gz"
)

// metadataPayload is the serialized form of the parallel arrays.
type metadataPayload struct {
	Documents []string           `json:"documents"`
	Metadata  []models.ChunkMeta `json:"metadata"`
}

// FileStore persists the index as two artifacts in one directory: a binary
// vector file and a gzipped JSON documents+metadata file.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first save, not here.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string { return s.dir }

// Exists reports whether both artifacts are present.
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	return fileExists(filepath.Join(s.dir, indexFile)) &&
		fileExists(filepath.Join(s.dir, metadataFile)), nil
}

// Save writes both artifacts under temporary names, then renames them into
// place so a crash mid-save never leaves the two mutually inconsistent.
func (s *FileStore) Save(ctx context.Context, idx *index.Flat, documents []string, metadata []models.ChunkMeta) error {
	if len(documents) != len(metadata) || len(documents) != idx.Size() {
		return fmt.Errorf("%w: %d documents, %d metadata, %d vectors", ErrCorruptIndex, len(documents), len(metadata), idx.Size())
	}
	if exists, _ := s.Exists(ctx); exists {
		return fmt.Errorf("%w at %s", ErrIndexExists, s.dir)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create directory: %w", err)
	}

	indexTmp, err := writeTemp(s.dir, indexFile, func(w *bufio.Writer) error {
		_, err := idx.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: write index: %w", err)
	}
	defer func() { _ = os.Remove(indexTmp) }()

	metaTmp, err := writeTemp(s.dir, metadataFile, func(w *bufio.Writer) error {
		zw := gzip.NewWriter(w)
		if err := json.NewEncoder(zw).Encode(metadataPayload{Documents: documents, Metadata: metadata}); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return fmt.Errorf("store: write metadata: %w", err)
	}
	defer func() { _ = os.Remove(metaTmp) }()

	// Both temp files are complete; swap them in.
	if err := os.Rename(indexTmp, filepath.Join(s.dir, indexFile)); err != nil {
		return fmt.Errorf("store: rename index: %w", err)
	}
	if err := os.Rename(metaTmp, filepath.Join(s.dir, metadataFile)); err != nil {
		return fmt.Errorf("store: rename metadata: %w", err)
	}
	return nil
}

// Load reads both artifacts back and validates the alignment invariant.
func (s *FileStore) Load(ctx context.Context) (*index.Flat, []string, []models.ChunkMeta, error) {
	indexPath := filepath.Join(s.dir, indexFile)
	metaPath := filepath.Join(s.dir, metadataFile)
	if !fileExists(indexPath) || !fileExists(metaPath) {
		return nil, nil, nil, fmt.Errorf("%w at %s", ErrIndexNotFound, s.dir)
	}

	idx, err := loadIndexFile(indexPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, indexPath, err)
	}

	payload, err := loadMetadataFile(metaPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, metaPath, err)
	}

	if len(payload.Documents) != len(payload.Metadata) || len(payload.Documents) != idx.Size() {
		return nil, nil, nil, fmt.Errorf("%w: %d documents, %d metadata, %d vectors",
			ErrCorruptIndex, len(payload.Documents), len(payload.Metadata), idx.Size())
	}
	return idx, payload.Documents, payload.Metadata, nil
}

func loadIndexFile(path string) (*index.Flat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return index.ReadFlat(bufio.NewReader(f))
}

func loadMetadataFile(path string) (*metadataPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var payload metadataPayload
	if err := json.NewDecoder(zr).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// writeTemp writes a temp file in dir and returns its path. The caller
// renames it into place on success; a deferred remove cleans up on failure.
func writeTemp(dir, base string, writeFunc func(*bufio.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()

	buf := bufio.NewWriter(tmp)
	if err := writeFunc(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
