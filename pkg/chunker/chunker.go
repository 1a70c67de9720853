package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
)

// Config controls how documents are split into overlapping chunks.
// ChunkSize and Overlap are counted in tokens (whitespace-delimited words).
type Config struct {
	ChunkSize int
	Overlap   int
}

// Chunker splits document text into fixed-size overlapping windows. The
// window start advances by ChunkSize-Overlap tokens each step, so consecutive
// chunks share Overlap tokens. The final window may be shorter and is kept
// if non-empty.
type Chunker struct {
	config Config
}

func NewWithConfig(config Config) (*Chunker, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", types.ErrInvalidChunkConfig, config.ChunkSize)
	}
	if config.Overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", types.ErrInvalidChunkConfig, config.Overlap)
	}
	if config.Overlap >= config.ChunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be less than chunk_size %d", types.ErrInvalidChunkConfig, config.Overlap, config.ChunkSize)
	}
	return &Chunker{config: config}, nil
}

// token marks a byte span of the document text. A token runs from the start
// of a word to the start of the next word, so it carries its trailing
// whitespace, and the first token absorbs any leading whitespace. Together
// the tokens partition the text exactly, which lets chunk texts be stitched
// back into the original once overlaps are dropped.
type token struct {
	start int
	end   int
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func tokenize(text string) []token {
	n := len(text)
	var starts []int
	for i := 0; i < n; i++ {
		if !isSpace(text[i]) && (i == 0 || isSpace(text[i-1])) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return nil
	}
	starts[0] = 0
	tokens := make([]token, len(starts))
	for j := range starts {
		end := n
		if j+1 < len(starts) {
			end = starts[j+1]
		}
		tokens[j] = token{start: starts[j], end: end}
	}
	return tokens
}

// Chunk splits the document into chunks. Same input always yields the same
// chunk sequence and ids, which makes re-ingestion idempotent.
func (c *Chunker) Chunk(doc models.Document) ([]models.Chunk, error) {
	tokens := tokenize(doc.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := c.config.ChunkSize - c.config.Overlap
	var chunks []models.Chunk
	for start, idx := 0, 0; ; start, idx = start+step, idx+1 {
		end := start + c.config.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		first, last := tokens[start], tokens[end-1]
		chunks = append(chunks, models.Chunk{
			ID:           chunkID(doc.ID, first.start),
			DocumentID:   doc.ID,
			Organization: doc.Organization,
			Index:        idx,
			Start:        first.start,
			End:          last.end,
			TokenCount:   end - start,
			Text:         doc.Text[first.start:last.end],
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

// chunkID derives a stable id from the document id and the chunk's byte
// offset within it.
func chunkID(docID string, offset int) string {
	h := sha1.Sum([]byte(docID + ":" + strconv.Itoa(offset)))
	return hex.EncodeToString(h[:8])
}
