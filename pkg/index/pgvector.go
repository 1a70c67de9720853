package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
)

// PGConfig configures the Postgres/pgvector-backed index.
type PGConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PG is a pgvector-backed VectorIndex. All namespaces in one table share the
// configured vector dimension; the similarity score is 1 - cosine distance.
type PG struct {
	config PGConfig
	pool   *pgxpool.Pool
}

func NewPGWithConfig(ctx context.Context, config PGConfig) (*PG, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pg := &PG{config: config, pool: pool}
	if err := pg.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}

func (pg *PG) initialize(ctx context.Context) error {
	if _, err := pg.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			token_count INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, pg.config.TableName, pg.config.VectorDim)
	if _, err := pg.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createNSIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)",
		pg.config.TableName, pg.config.TableName)
	if _, err := pg.pool.Exec(ctx, createNSIndex); err != nil {
		return fmt.Errorf("failed to create namespace index: %w", err)
	}

	createVecIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pg.config.TableName, pg.config.TableName)
	if _, err := pg.pool.Exec(ctx, createVecIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

// Upsert inserts records in one transaction, replacing rows that share a
// chunk id so re-ingestion does not duplicate.
func (pg *PG) Upsert(ctx context.Context, namespace string, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if len(rec.Embedding) != pg.config.VectorDim {
			return fmt.Errorf("%w: index expects dimension %d, got %d",
				types.ErrDimensionMismatch, pg.config.VectorDim, len(rec.Embedding))
		}
	}

	tx, err := pg.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, document_id, chunk_index, start_offset, token_count, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		pg.config.TableName)

	for _, rec := range records {
		_, err := tx.Exec(ctx, stmt,
			rec.Chunk.ID,
			namespace,
			rec.Chunk.DocumentID,
			rec.Chunk.Index,
			rec.Chunk.Start,
			rec.Chunk.TokenCount,
			rec.Chunk.Text,
			pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", rec.Chunk.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Search returns up to topK chunks for the namespace ordered by descending
// cosine similarity.
func (pg *PG) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]models.ScoredChunk, error) {
	if len(vector) != pg.config.VectorDim {
		return nil, fmt.Errorf("%w: index expects dimension %d, got %d",
			types.ErrDimensionMismatch, pg.config.VectorDim, len(vector))
	}
	if topK <= 0 {
		topK = 5
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, start_offset, token_count, content,
		       1 - (embedding <=> $1) AS score
		FROM %s
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pg.config.TableName)

	rows, err := pg.pool.Query(ctx, query, pgvector.NewVector(vector), namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		err := rows.Scan(
			&sc.Chunk.ID,
			&sc.Chunk.DocumentID,
			&sc.Chunk.Index,
			&sc.Chunk.Start,
			&sc.Chunk.TokenCount,
			&sc.Chunk.Text,
			&sc.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sc.Chunk.Organization = namespace
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// a namespace exists in this schema only while it holds rows
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", types.ErrNamespaceNotFound, namespace)
	}
	return results, nil
}

// Delete removes every row for the namespace.
func (pg *PG) Delete(ctx context.Context, namespace string) error {
	tag, err := pg.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE namespace = $1", pg.config.TableName), namespace)
	if err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", types.ErrNamespaceNotFound, namespace)
	}
	return nil
}

// Namespaces lists indexed namespaces with their chunk counts.
func (pg *PG) Namespaces(ctx context.Context) ([]models.NamespaceStat, error) {
	query := fmt.Sprintf(
		"SELECT namespace, COUNT(*) FROM %s GROUP BY namespace ORDER BY namespace",
		pg.config.TableName)
	rows, err := pg.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer rows.Close()

	var stats []models.NamespaceStat
	for rows.Next() {
		var st models.NamespaceStat
		if err := rows.Scan(&st.Organization, &st.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (pg *PG) Close() {
	if pg.pool != nil {
		pg.pool.Close()
	}
}
