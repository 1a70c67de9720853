package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nvale/orgchat/internal/types"
)

// EmbedderConfig selects and configures an embedding backend.
type EmbedderConfig struct {
	Provider  string // "ollama" or "openai"
	Model     string
	BaseURL   string // Ollama server URL
	APIKey    string // OpenAI API key
	Dimension int
	BatchSize int
}

// embeddingClient is the slice of the backend clients the embedder needs.
// Both ollama.LLM and openai.LLM satisfy it.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder generates fixed-dimension vectors for chunks and queries, batching
// requests to the backend. All vectors produced by one instance share the
// configured dimension.
type Embedder struct {
	config EmbedderConfig
	client embeddingClient
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Dimension <= 0 {
		config.Dimension = 768
	}

	var client embeddingClient
	var err error
	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		client, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai embedder requires an API key")
		}
		client, err = openai.New(
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s embedder: %w", config.Provider, err)
	}

	return &Embedder{config: config, client: client}, nil
}

// Embed returns one vector per input text, preserving order. Empty input
// yields empty output.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.client.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrEmbedding, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", types.ErrEmbedding, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Dimension reports the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}
