package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
)

// Memory is an in-process vector index using brute-force cosine similarity.
// Records are partitioned by organization namespace; each namespace fixes its
// vector dimension on first upsert. Reads proceed concurrently, writes to a
// namespace are serialized against reads and other writes on that namespace.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
}

type namespace struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]models.IndexRecord
}

func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]*namespace)}
}

// Upsert stores records, replacing any existing record with the same chunk id.
func (m *Memory) Upsert(ctx context.Context, name string, records []models.IndexRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	m.mu.Lock()
	ns, ok := m.namespaces[name]
	if !ok {
		ns = &namespace{records: make(map[string]models.IndexRecord)}
		m.namespaces[name] = ns
	}
	m.mu.Unlock()

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.dimension == 0 {
		ns.dimension = len(records[0].Embedding)
	}
	for _, rec := range records {
		if len(rec.Embedding) != ns.dimension {
			return fmt.Errorf("%w: namespace %q expects dimension %d, got %d",
				types.ErrDimensionMismatch, name, ns.dimension, len(rec.Embedding))
		}
	}
	for _, rec := range records {
		ns.records[rec.Chunk.ID] = rec
	}
	return nil
}

// Search returns up to topK records ordered by descending cosine similarity.
// Score ties break by chunk sequence index so results are deterministic.
func (m *Memory) Search(ctx context.Context, name string, vector []float32, topK int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	ns, ok := m.namespaces[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrNamespaceNotFound, name)
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	if len(ns.records) == 0 {
		return nil, nil
	}
	if ns.dimension != len(vector) {
		return nil, fmt.Errorf("%w: namespace %q expects dimension %d, got %d",
			types.ErrDimensionMismatch, name, ns.dimension, len(vector))
	}
	if topK <= 0 {
		topK = 5
	}

	results := make([]models.ScoredChunk, 0, len(ns.records))
	for _, rec := range ns.records {
		results = append(results, models.ScoredChunk{
			Chunk: rec.Chunk,
			Score: cosine(rec.Embedding, vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes every record in the namespace.
func (m *Memory) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.namespaces[name]; !ok {
		return fmt.Errorf("%w: %q", types.ErrNamespaceNotFound, name)
	}
	delete(m.namespaces, name)
	return nil
}

// Namespaces lists every namespace with its record count, sorted by name.
func (m *Memory) Namespaces(ctx context.Context) ([]models.NamespaceStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]models.NamespaceStat, 0, len(m.namespaces))
	for name, ns := range m.namespaces {
		ns.mu.RLock()
		count := len(ns.records)
		ns.mu.RUnlock()
		stats = append(stats, models.NamespaceStat{Organization: name, ChunkCount: count})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Organization < stats[j].Organization })
	return stats, nil
}

func (m *Memory) Close() {}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
