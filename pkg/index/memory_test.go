package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
	"github.com/nvale/orgchat/pkg/index"
)

func record(id string, idx int, vec []float32) models.IndexRecord {
	return models.IndexRecord{
		Chunk:     models.Chunk{ID: id, DocumentID: "doc", Index: idx, Text: "chunk " + id},
		Embedding: vec,
	}
}

func TestMemory_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	err := m.Upsert(ctx, "acme", []models.IndexRecord{
		record("a", 0, []float32{1, 0, 0}),
		record("b", 1, []float32{0, 1, 0}),
		record("c", 2, []float32{0.9, 0.1, 0}),
	})
	require.NoError(t, err)

	results, err := m.Search(ctx, "acme", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.Equal(t, "c", results[1].Chunk.ID)
	// scores are monotonically non-increasing
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestMemory_SearchNeverExceedsTopK(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	var records []models.IndexRecord
	for i := 0; i < 10; i++ {
		records = append(records, record(string(rune('a'+i)), i, []float32{float32(i + 1), 1, 0}))
	}
	require.NoError(t, m.Upsert(ctx, "acme", records))

	for _, k := range []int{1, 3, 10, 50} {
		results, err := m.Search(ctx, "acme", []float32{1, 1, 0}, k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), k)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	}
}

func TestMemory_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	recs := []models.IndexRecord{
		record("a", 0, []float32{1, 0, 0}),
		record("b", 1, []float32{0, 1, 0}),
	}
	require.NoError(t, m.Upsert(ctx, "acme", recs))
	require.NoError(t, m.Upsert(ctx, "acme", recs))

	stats, err := m.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].ChunkCount)
}

func TestMemory_UpsertReplacesVector(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	require.NoError(t, m.Upsert(ctx, "acme", []models.IndexRecord{record("a", 0, []float32{1, 0, 0})}))
	require.NoError(t, m.Upsert(ctx, "acme", []models.IndexRecord{record("a", 0, []float32{0, 1, 0})}))

	results, err := m.Search(ctx, "acme", []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
}

func TestMemory_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	require.NoError(t, m.Upsert(ctx, "acme", []models.IndexRecord{record("a", 0, []float32{1, 0, 0})}))

	err := m.Upsert(ctx, "acme", []models.IndexRecord{record("b", 1, []float32{1, 0})})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	_, err = m.Search(ctx, "acme", []float32{1, 0}, 5)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestMemory_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	require.NoError(t, m.Upsert(ctx, "acme", []models.IndexRecord{record("a", 0, []float32{1, 0})}))
	require.NoError(t, m.Upsert(ctx, "globex", []models.IndexRecord{record("b", 0, []float32{0, 1})}))

	results, err := m.Search(ctx, "acme", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)

	stats, err := m.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "acme", stats[0].Organization)
	assert.Equal(t, "globex", stats[1].Organization)
}

func TestMemory_UnknownNamespace(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	_, err := m.Search(ctx, "nowhere", []float32{1, 0}, 5)
	assert.ErrorIs(t, err, types.ErrNamespaceNotFound)

	err = m.Delete(ctx, "nowhere")
	assert.ErrorIs(t, err, types.ErrNamespaceNotFound)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := index.NewMemory()

	require.NoError(t, m.Upsert(ctx, "acme", []models.IndexRecord{record("a", 0, []float32{1, 0})}))
	require.NoError(t, m.Delete(ctx, "acme"))

	stats, err := m.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}
