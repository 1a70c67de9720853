package types

import (
	"context"
	"errors"
)

// Error taxonomy for the pipeline. Components wrap these sentinels with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is.
var (
	// ErrInvalidChunkConfig rejects a chunking configuration before any
	// processing happens. Caller error, never retried.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")

	// ErrEmbedding signals the embedding backend failed or was unreachable.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch signals a vector whose length differs from the
	// namespace's established dimension. Indicates a namespace built with a
	// different model; never coerced.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNamespaceNotFound signals an operation against an unknown namespace.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrRetrievalTimeout signals the retrieval step exceeded its deadline.
	ErrRetrievalTimeout = errors.New("retrieval timed out")

	// ErrGeneration signals the generation backend failed (rate limit, auth,
	// timeout).
	ErrGeneration = errors.New("generation failed")
)

// Retryable reports whether err is a transient failure the orchestrator may
// retry with backoff. Config and dimension errors are always fatal.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbedding) ||
		errors.Is(err, ErrGeneration) ||
		errors.Is(err, ErrRetrievalTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
