package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
	"github.com/nvale/orgchat/pkg/chunker"
)

func TestNewWithConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config chunker.Config
	}{
		{"zero chunk size", chunker.Config{ChunkSize: 0, Overlap: 0}},
		{"negative chunk size", chunker.Config{ChunkSize: -5, Overlap: 0}},
		{"negative overlap", chunker.Config{ChunkSize: 10, Overlap: -1}},
		{"overlap equals chunk size", chunker.Config{ChunkSize: 10, Overlap: 10}},
		{"overlap exceeds chunk size", chunker.Config{ChunkSize: 10, Overlap: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chunker.NewWithConfig(tt.config)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInvalidChunkConfig)
		})
	}
}

func TestChunk_MissionStatement(t *testing.T) {
	c, err := chunker.NewWithConfig(chunker.Config{ChunkSize: 8, Overlap: 2})
	require.NoError(t, err)

	doc := models.Document{
		ID:           "doc1",
		Organization: "clearwater",
		Text:         "Our mission is to provide clean water. We operate in 12 countries.",
	}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, 8, chunks[0].TokenCount)
	// the second chunk starts two tokens before the first one ends
	assert.True(t, strings.HasPrefix(chunks[1].Text, "clean water."))
	assert.Less(t, chunks[1].Start, chunks[0].End)
	assert.Equal(t, "clearwater", chunks[1].Organization)
}

func TestChunk_Reconstruction(t *testing.T) {
	texts := []string{
		"one two three four five six seven eight nine ten eleven twelve",
		"  leading whitespace and\ttabs\nand newlines are kept intact  ",
		"single",
		"a b",
	}

	for _, text := range texts {
		for _, cfg := range []chunker.Config{
			{ChunkSize: 3, Overlap: 1},
			{ChunkSize: 4, Overlap: 2},
			{ChunkSize: 5, Overlap: 0},
			{ChunkSize: 100, Overlap: 10},
		} {
			c, err := chunker.NewWithConfig(cfg)
			require.NoError(t, err)

			chunks, err := c.Chunk(models.Document{ID: "d", Text: text})
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			// stitch chunk texts back together, dropping each overlap
			var b strings.Builder
			b.WriteString(chunks[0].Text)
			for i := 1; i < len(chunks); i++ {
				prev := chunks[i-1]
				cur := chunks[i]
				b.WriteString(cur.Text[prev.End-cur.Start:])
			}
			assert.Equal(t, text, b.String(), "config %+v", cfg)

			// every chunk except possibly the last is exactly ChunkSize tokens
			for i, ch := range chunks[:len(chunks)-1] {
				assert.Equal(t, cfg.ChunkSize, ch.TokenCount, "chunk %d", i)
			}
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := chunker.NewWithConfig(chunker.Config{ChunkSize: 4, Overlap: 1})
	require.NoError(t, err)

	doc := models.Document{ID: "doc1", Text: "alpha beta gamma delta epsilon zeta eta theta"}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestChunk_EmptyText(t *testing.T) {
	c, err := chunker.NewWithConfig(chunker.Config{ChunkSize: 4, Overlap: 1})
	require.NoError(t, err)

	for _, text := range []string{"", "   \n\t  "} {
		chunks, err := c.Chunk(models.Document{ID: "d", Text: text})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}
