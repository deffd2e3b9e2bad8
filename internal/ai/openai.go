package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// maxBatchInputs bounds how many texts go into one embeddings request.
const maxBatchInputs = 128

type OpenAIClient struct {
	config *ClientConfig
	client *openai.Client
}

func NewOpenAIClient(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("PROVIDER_API_KEY unset")
	}

	// Set default model if not provided
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.Dim == 0 {
		// Set default dimensions based on the embedding model
		switch config.EmbedModel {
		case "text-embedding-3-small":
			config.Dim = 1536
		case "text-embedding-3-large":
			config.Dim = 3072
		case "text-embedding-ada-002":
			config.Dim = 1536
		default:
			// Default to text-embedding-3-small dimensions
			config.Dim = 1536
		}
	}

	return &OpenAIClient{
		config: config,
		client: openai.NewClient(config.APIKey),
	}, nil
}

// EmbedBatch implements the embedding functionality. Inputs are sent in
// fixed-size sub-batches; output order matches input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchInputs {
		end := start + maxBatchInputs
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.config.EmbedModel),
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", end-start, len(resp.Data))
		}

		for _, d := range resp.Data {
			v := make([]float32, len(d.Embedding))
			for i, x := range d.Embedding {
				v[i] = float32(x)
			}
			if len(v) != c.config.Dim {
				return nil, &errUnexpectedDim{model: c.config.EmbedModel, want: c.config.Dim, got: len(v)}
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}

type errUnexpectedDim struct {
	model string
	want  int
	got   int
}

func (e *errUnexpectedDim) Error() string {
	return fmt.Sprintf("model %s returned %d-dim vector, expected %d", e.model, e.got, e.want)
}
