package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
)

// Client produces one embedding vector per input text, in input order. The
// dimension is fixed for the lifetime of a client; building and querying an
// index must use the same model.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// Provider is enumeration of supported embedding providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for embedding clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	Dim        int
	ProjectID  string
	Provider   Provider
	Location   string
}

// NewClient creates a new embedding client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config)
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient produces deterministic pseudo-random unit vectors derived from
// the input text. It backs offline mode and tests; similar inputs do not get
// similar vectors, identical inputs do.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim == 0 {
		dim = 384
	}
	return &StubClient{dim: dim}
}

// EmbedBatch implements the embedding functionality
func (s *StubClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.embedOne(t)
	}
	return out, nil
}

func (s *StubClient) embedOne(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, s.dim)
	var sum float64
	for i := range v {
		x := rng.Float64()*2 - 1
		v[i] = float32(x)
		sum += x * x
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
