// Package index provides a flat, exact inner-product index over L2-normalized
// vectors. With unit vectors on both sides the inner product equals cosine
// similarity, so results rank by descending cosine similarity.
package index

import (
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch reports a vector whose dimension disagrees with the
// index.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("index: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Hit is a single search result: the insertion position of the matched vector
// and its similarity to the query.
type Hit struct {
	Position int
	Score    float32
}

// Flat stores normalized vectors contiguously and searches them exhaustively.
// Append is the only mutation; a loaded index is safe for concurrent reads.
type Flat struct {
	dim  int
	data []float32 // row-major, Size()*dim entries
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

func (f *Flat) Dim() int { return f.dim }

// Size returns the number of stored vectors.
func (f *Flat) Size() int { return len(f.data) / f.dim }

// Add appends vectors in order, normalizing each to unit L2 norm first. The
// inputs are not mutated.
func (f *Flat) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != f.dim {
			return &ErrDimensionMismatch{Expected: f.dim, Actual: len(v)}
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, normalize(v)...)
	}
	return nil
}

// Search returns the k nearest vectors to query by inner product, ranked
// descending. Ties break by ascending insertion position. If k exceeds the
// number of stored vectors, all of them are returned. The query is normalized
// before comparison.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, &ErrDimensionMismatch{Expected: f.dim, Actual: len(query)}
	}
	n := f.Size()
	if n == 0 || k <= 0 {
		return []Hit{}, nil
	}

	q := normalize(query)
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var dot float32
		for j, x := range q {
			dot += x * row[j]
		}
		hits[i] = Hit{Position: i, Score: dot}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})

	if k > n {
		k = n
	}
	return hits[:k], nil
}

// Vector returns a copy of the stored (normalized) vector at position i.
func (f *Flat) Vector(i int) []float32 {
	out := make([]float32, f.dim)
	copy(out, f.data[i*f.dim:(i+1)*f.dim])
	return out
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
