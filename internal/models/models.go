package models

import "time"

// Document is raw text harvested for one organization. It is immutable once
// handed to the ingestion path.
type Document struct {
	ID           string
	Organization string
	Source       string
	Text         string
	Metadata     map[string]interface{}
}

// Chunk is the unit of indexing and retrieval: a bounded span of a document.
// Offsets are byte positions into the original document text.
type Chunk struct {
	ID           string
	DocumentID   string
	Organization string
	Index        int
	Start        int
	End          int
	TokenCount   int
	Text         string
}

// IndexRecord pairs a chunk with its embedding vector for storage.
type IndexRecord struct {
	Chunk     Chunk
	Embedding []float32
}

// ScoredChunk is a chunk with its cosine similarity against a query vector.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// Turn is one query/answer exchange within a conversation session.
type Turn struct {
	Query     string
	Answer    string
	ChunkIDs  []string
	Timestamp time.Time
}

// Prompt is a fully assembled instruction ready for a generation backend.
type Prompt struct {
	System string
	User   string
}

// Source is a citation preview attached to an answer.
type Source struct {
	ChunkID      string
	Organization string
	Preview      string
	Score        float32
}

// NamespaceStat counts indexed chunks for one organization.
type NamespaceStat struct {
	Organization string
	ChunkCount   int
}
