package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
)

// Config holds the retriever defaults. Per-query Params override them.
type Config struct {
	TopK                int
	SimilarityThreshold float32
	Rerank              bool
	RerankMultiplier    int
	Timeout             time.Duration
}

// Params are the per-query knobs. Zero values fall back to the configured
// defaults.
type Params struct {
	TopK      int
	Threshold float32
	Rerank    bool
}

// Retriever embeds a query, searches the vector index for the organization's
// namespace, filters by similarity threshold and optionally reranks an
// over-fetched candidate set by lexical overlap with the query.
type Retriever struct {
	embedder types.Embedder
	index    types.VectorIndex
	config   Config
}

func NewWithConfig(embedder types.Embedder, index types.VectorIndex, config Config) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = 0.3
	}
	if config.RerankMultiplier <= 1 {
		config.RerankMultiplier = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Retriever{embedder: embedder, index: index, config: config}
}

// Retrieve returns the most relevant chunks for the query, descending by
// score, never more than topK and never below the threshold. An empty result
// is a normal outcome, not an error; the orchestrator handles it explicitly.
func (r *Retriever) Retrieve(ctx context.Context, query, namespace string, p Params) ([]models.ScoredChunk, error) {
	topK := p.TopK
	if topK <= 0 {
		topK = r.config.TopK
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = r.config.SimilarityThreshold
	}
	rerank := p.Rerank || r.config.Rerank

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding query", types.ErrRetrievalTimeout)
		}
		return nil, err
	}

	// over-fetch so the rerank pass has material to work with
	fetch := topK
	if rerank {
		fetch = topK * r.config.RerankMultiplier
	}

	results, err := r.index.Search(ctx, namespace, vectors[0], fetch)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNamespaceNotFound):
			return nil, nil
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: index search", types.ErrRetrievalTimeout)
		}
		return nil, err
	}

	filtered := results[:0]
	for _, sc := range results {
		if sc.Score >= threshold {
			filtered = append(filtered, sc)
		}
	}

	if rerank && len(filtered) > 1 {
		rerankByLexicalOverlap(query, filtered)
	}
	if topK < len(filtered) {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// rerankByLexicalOverlap reorders candidates by the Ochiai coefficient
// between the query's token set and each chunk's. The sort is stable, so
// chunks with equal overlap keep their similarity order.
func rerankByLexicalOverlap(query string, results []models.ScoredChunk) {
	qset := tokenSet(query)
	overlap := make([]float64, len(results))
	for i, sc := range results {
		overlap[i] = ochiai(qset, tokenSet(sc.Chunk.Text))
	}
	indexed := make([]int, len(results))
	for i := range indexed {
		indexed[i] = i
	}
	sort.SliceStable(indexed, func(a, b int) bool { return overlap[indexed[a]] > overlap[indexed[b]] })

	reordered := make([]models.ScoredChunk, len(results))
	for i, j := range indexed {
		reordered[i] = results[j]
	}
	copy(results, reordered)
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ochiai computes |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / (math.Sqrt(float64(len(a))) * math.Sqrt(float64(len(b))))
}
