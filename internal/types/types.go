package types

import (
	"context"

	"github.com/nvale/orgchat/internal/models"
)

// Embedder maps texts to fixed-dimension vectors, one per input, preserving
// order. Empty input yields empty output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorIndex stores (chunk, vector) records partitioned by organization
// namespace and supports cosine similarity search. Upsert is idempotent by
// chunk id. Search applies no threshold; filtering is the retriever's job.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []models.IndexRecord) error
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]models.ScoredChunk, error)
	Delete(ctx context.Context, namespace string) error
	Namespaces(ctx context.Context) ([]models.NamespaceStat, error)
	Close()
}

// GenerationProvider produces an answer for an assembled prompt. Implementations
// wrap a concrete LLM backend; callers depend only on this interface.
type GenerationProvider interface {
	Generate(ctx context.Context, prompt models.Prompt) (string, error)
}

// RawTextProvider supplies cleaned text for a source. Content acquisition
// (crawling, HTML cleanup) lives behind this interface, outside the core.
type RawTextProvider interface {
	GetCleanedText(ctx context.Context, source string) (string, error)
}

// SessionStore keeps ordered turn history per session id. Sessions are created
// implicitly on first append and deleted by Clear. Appends on the same session
// id are serialized; different sessions are independent.
type SessionStore interface {
	History(sessionID string) []models.Turn
	Append(sessionID string, turn models.Turn)
	Clear(sessionID string)
}
