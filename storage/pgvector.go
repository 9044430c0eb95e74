package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"transcriptSummarize/core"
)

// PgSummaryStore keeps summary insights in Postgres with pgvector embeddings.
type PgSummaryStore struct {
	conn  *pgx.Conn
	oa    embedder
	model string
	dim   int
}

func newPgSummaryStore(ctx context.Context, opts Options, oa embedder) (*PgSummaryStore, error) {
	if opts.PostgresURL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	conn, err := pgx.Connect(ctx, opts.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	dim := opts.EmbeddingDim
	if dim <= 0 {
		dim = 1536
	}
	s := &PgSummaryStore{conn: conn, oa: oa, model: opts.EmbeddingModel, dim: dim}
	if err := s.ensureTable(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgSummaryStore) ensureTable(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS summary_insights (
			id SERIAL PRIMARY KEY,
			video_id VARCHAR(512) NOT NULL,
			language VARCHAR(16) NOT NULL,
			insight TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, s.dim)
	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create summary_insights table: %w", err)
	}
	if _, err := s.conn.Exec(ctx,
		"CREATE INDEX IF NOT EXISTS idx_summary_insights_video ON summary_insights (video_id, language);"); err != nil {
		return fmt.Errorf("create video index: %w", err)
	}
	return nil
}

// Upsert replaces the stored insights for (videoID, language).
func (s *PgSummaryStore) Upsert(ctx context.Context, videoID, language string, summary *core.SummaryData) (int, error) {
	texts := indexableTexts(summary)
	if len(texts) == 0 {
		return 0, nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM summary_insights WHERE video_id = $1 AND language = $2", videoID, language); err != nil {
		return 0, fmt.Errorf("clear previous insights: %w", err)
	}

	count := 0
	for _, text := range texts {
		embedding, err := embedText(ctx, s.oa, s.model, strings.ToLower(text))
		if err != nil {
			return count, err
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO summary_insights (video_id, language, insight, embedding) VALUES ($1, $2, $3, $4)",
			videoID, language, text, pgvector.NewVector(embedding)); err != nil {
			return count, fmt.Errorf("insert insight: %w", err)
		}
		count++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return count, nil
}

// Search returns the topK insights closest to the query by cosine distance.
func (s *PgSummaryStore) Search(ctx context.Context, query string, topK int) ([]InsightHit, error) {
	if topK <= 0 {
		topK = 5
	}
	embedding, err := embedText(ctx, s.oa, s.model, strings.ToLower(query))
	if err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.conn.Query(ctx, `
		SELECT video_id, language, insight, 1 - (embedding <=> $1) AS score
		FROM summary_insights
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search insights: %w", err)
	}
	defer rows.Close()

	var hits []InsightHit
	for rows.Next() {
		var h InsightHit
		if err := rows.Scan(&h.VideoID, &h.Language, &h.Insight, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgSummaryStore) Close(ctx context.Context) error { return s.conn.Close(ctx) }
