package rag

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
	"github.com/nvale/orgchat/pkg/chunker"
	"github.com/nvale/orgchat/pkg/prompt"
	"github.com/nvale/orgchat/pkg/retriever"
)

// queryState tracks where in the pipeline a query currently is, so failures
// can say which step broke.
type queryState string

const (
	stateReceived     queryState = "received"
	stateRetrieving   queryState = "retrieving"
	stateEmptyContext queryState = "empty_context"
	stateFormatting   queryState = "formatting"
	stateGenerating   queryState = "generating"
	stateRecording    queryState = "recording"
	stateDone         queryState = "done"
)

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	ChunkSize       int
	ChunkOverlap    int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// Orchestrator composes chunking, embedding, indexing, retrieval, prompt
// assembly and generation into an ingest path and a query path. It owns no
// global lock: concurrent queries against different sessions and namespaces
// never contend beyond the index and session store internals.
type Orchestrator struct {
	config    Config
	embedder  types.Embedder
	index     types.VectorIndex
	retriever *retriever.Retriever
	sessions  types.SessionStore
	formatter *prompt.Formatter
	provider  types.GenerationProvider
	texts     types.RawTextProvider

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts query outcomes since startup.
type Stats struct {
	TotalQueries   int
	Successful     int
	Failed         int
	EmptyContext   int
	ChunksIndexed  int
	TotalQueryTime time.Duration
}

func NewWithConfig(
	config Config,
	embedder types.Embedder,
	index types.VectorIndex,
	ret *retriever.Retriever,
	sessions types.SessionStore,
	formatter *prompt.Formatter,
	provider types.GenerationProvider,
	texts types.RawTextProvider,
) *Orchestrator {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 512
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 10
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 200 * time.Millisecond
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = 30 * time.Second
	}
	if config.GenerateTimeout <= 0 {
		config.GenerateTimeout = 60 * time.Second
	}
	return &Orchestrator{
		config:    config,
		embedder:  embedder,
		index:     index,
		retriever: ret,
		sessions:  sessions,
		formatter: formatter,
		provider:  provider,
		texts:     texts,
	}
}

// IngestRequest carries one document for indexing. ChunkSize and Overlap of
// zero fall back to the configured defaults.
type IngestRequest struct {
	Organization string
	Source       string
	Text         string
	ChunkSize    int
	Overlap      int
}

// Ingest chunks the text, embeds the chunks and upserts them into the
// organization's namespace. Returns the number of chunks indexed.
// Re-ingesting the same document leaves the namespace count unchanged.
func (o *Orchestrator) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	if req.Organization == "" {
		return 0, fmt.Errorf("organization is required")
	}
	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = o.config.ChunkSize
	}
	overlap := req.Overlap
	if overlap == 0 {
		overlap = o.config.ChunkOverlap
	}

	c, err := chunker.NewWithConfig(chunker.Config{ChunkSize: chunkSize, Overlap: overlap})
	if err != nil {
		return 0, err
	}

	doc := models.Document{
		ID:           documentID(req.Organization, req.Source, req.Text),
		Organization: req.Organization,
		Source:       req.Source,
		Text:         req.Text,
	}
	chunks, err := c.Chunk(doc)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	var vectors [][]float32
	err = o.withRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.config.EmbedTimeout)
		defer cancel()
		var embedErr error
		vectors, embedErr = o.embedder.Embed(ctx, texts)
		return embedErr
	})
	if err != nil {
		return 0, fmt.Errorf("ingest for %q: %w", req.Organization, err)
	}

	records := make([]models.IndexRecord, len(chunks))
	for i := range chunks {
		records[i] = models.IndexRecord{Chunk: chunks[i], Embedding: vectors[i]}
	}
	if err := o.index.Upsert(ctx, req.Organization, records); err != nil {
		return 0, fmt.Errorf("ingest for %q: %w", req.Organization, err)
	}

	o.statsMu.Lock()
	o.stats.ChunksIndexed += len(records)
	o.statsMu.Unlock()
	return len(records), nil
}

// IngestSource fetches cleaned text for the source through the configured
// RawTextProvider and ingests it.
func (o *Orchestrator) IngestSource(ctx context.Context, organization, source string, chunkSize, overlap int) (int, error) {
	if o.texts == nil {
		return 0, fmt.Errorf("no text provider configured")
	}
	text, err := o.texts.GetCleanedText(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("fetch %q: %w", source, err)
	}
	return o.Ingest(ctx, IngestRequest{
		Organization: organization,
		Source:       source,
		Text:         text,
		ChunkSize:    chunkSize,
		Overlap:      overlap,
	})
}

// QueryRequest is one question against one organization's indexed content.
// TopK, Threshold and Rerank of zero value fall back to retriever defaults.
// An empty SessionID starts a new session.
type QueryRequest struct {
	Organization string
	SessionID    string
	Query        string
	TopK         int
	Threshold    float32
	Rerank       bool
}

// QueryResult carries the grounded answer with its cited sources.
type QueryResult struct {
	Answer          string
	Sources         []models.Source
	SessionID       string
	RetrievedChunks int
	EmptyContext    bool
	Duration        time.Duration
}

// Query runs the full pipeline for one question: retrieve, format, generate,
// record. When nothing clears the similarity threshold it short-circuits to a
// canned insufficient-information answer, still recorded as a turn with zero
// cited chunks. A failed or cancelled query records nothing.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := time.Now()
	state := stateReceived

	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	state = stateRetrieving
	var retrieved []models.ScoredChunk
	err := o.withRetry(ctx, func(ctx context.Context) error {
		var retErr error
		retrieved, retErr = o.retriever.Retrieve(ctx, req.Query, req.Organization, retriever.Params{
			TopK:      req.TopK,
			Threshold: req.Threshold,
			Rerank:    req.Rerank,
		})
		return retErr
	})
	if err != nil {
		return nil, o.fail(state, err)
	}

	var answer string
	if len(retrieved) == 0 {
		state = stateEmptyContext
		answer = o.formatter.Fallback(req.Query, req.Organization)
	} else {
		state = stateFormatting
		history := o.sessions.History(sessionID)
		p := o.formatter.Format(req.Query, retrieved, history, req.Organization)

		state = stateGenerating
		err = o.withRetry(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, o.config.GenerateTimeout)
			defer cancel()
			var genErr error
			answer, genErr = o.provider.Generate(ctx, p)
			return genErr
		})
		if err != nil {
			return nil, o.fail(state, err)
		}
	}

	// a cancelled query must not record a partial turn
	if err := ctx.Err(); err != nil {
		return nil, o.fail(state, err)
	}

	emptyContext := state == stateEmptyContext
	state = stateRecording
	chunkIDs := make([]string, len(retrieved))
	sources := make([]models.Source, len(retrieved))
	for i, sc := range retrieved {
		chunkIDs[i] = sc.Chunk.ID
		sources[i] = models.Source{
			ChunkID:      sc.Chunk.ID,
			Organization: sc.Chunk.Organization,
			Preview:      preview(sc.Chunk.Text),
			Score:        sc.Score,
		}
	}
	o.sessions.Append(sessionID, models.Turn{
		Query:     req.Query,
		Answer:    answer,
		ChunkIDs:  chunkIDs,
		Timestamp: time.Now(),
	})

	state = stateDone
	duration := time.Since(start)
	o.statsMu.Lock()
	o.stats.TotalQueries++
	o.stats.Successful++
	if emptyContext {
		o.stats.EmptyContext++
	}
	o.stats.TotalQueryTime += duration
	o.statsMu.Unlock()

	return &QueryResult{
		Answer:          answer,
		Sources:         sources,
		SessionID:       sessionID,
		RetrievedChunks: len(retrieved),
		EmptyContext:    emptyContext,
		Duration:        duration,
	}, nil
}

// GetHistory returns the ordered turns for a session; unknown sessions yield
// an empty history.
func (o *Orchestrator) GetHistory(sessionID string) []models.Turn {
	return o.sessions.History(sessionID)
}

// ClearHistory deletes a session's history.
func (o *Orchestrator) ClearHistory(sessionID string) {
	o.sessions.Clear(sessionID)
}

// ListOrganizations reports every indexed namespace with its chunk count.
func (o *Orchestrator) ListOrganizations(ctx context.Context) ([]models.NamespaceStat, error) {
	return o.index.Namespaces(ctx)
}

// DeleteOrganization removes an organization's namespace from the index.
func (o *Orchestrator) DeleteOrganization(ctx context.Context, organization string) error {
	return o.index.Delete(ctx, organization)
}

// GetStats returns a snapshot of pipeline counters.
func (o *Orchestrator) GetStats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.stats
}

func (o *Orchestrator) fail(state queryState, err error) error {
	o.statsMu.Lock()
	o.stats.TotalQueries++
	o.stats.Failed++
	o.statsMu.Unlock()
	return fmt.Errorf("query failed while %s: %w", state, err)
}

// withRetry runs op, retrying transient failures with exponential backoff up
// to the configured attempt count. Fatal errors surface immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op func(context.Context) error) error {
	delay := o.config.RetryBaseDelay
	var err error
	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = op(ctx); err == nil {
			return nil
		}
		if !types.Retryable(err) {
			return err
		}
	}
	return err
}

func preview(text string) string {
	const max = 100
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

// documentID is a stable function of the ingested content, so re-ingestion
// produces identical chunk ids.
func documentID(organization, source, text string) string {
	h := sha1.Sum([]byte(organization + "\x00" + source + "\x00" + text))
	return hex.EncodeToString(h[:8])
}
