package graph

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

const defaultEmbeddingDim = 1024

// SetEmbeddingDim overrides the vector column width before EnsureSchema
// runs. Has no effect on an already-created table.
func (s *Store) SetEmbeddingDim(dim int) {
	if dim > 0 {
		s.embeddingDim = dim
	}
}

func (s *Store) ensureEmbeddingSchema(ctx context.Context) error {
	dim := s.embeddingDim
	if dim == 0 {
		dim = defaultEmbeddingDim
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_embeddings (
			video_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ref_key TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			PRIMARY KEY (video_id, kind, ref_key)
		)`, dim),
	}
	for _, stmt := range stmts {
		if _, err := s.pg.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure embedding schema: %w", err)
		}
	}
	return nil
}

// UpsertEmbedding stores one embedding row. kind names the source artifact
// ("chapter", "concept", "transcript_window") and refKey identifies it
// within the video, so re-embedding overwrites in place.
func (s *Store) UpsertEmbedding(ctx context.Context, videoID, kind, refKey, content string, vec []float32) error {
	_, err := s.pg.DB().ExecContext(ctx, `
		INSERT INTO knowledge_embeddings (video_id, kind, ref_key, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_id, kind, ref_key) DO UPDATE
		SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		videoID, kind, refKey, content, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("upsert embedding %s/%s/%s: %w", videoID, kind, refKey, err)
	}
	return nil
}

// DeleteEmbeddings drops every embedding row for a video, used before a full
// re-embed.
func (s *Store) DeleteEmbeddings(ctx context.Context, videoID string) error {
	_, err := s.pg.DB().ExecContext(ctx, `
		DELETE FROM knowledge_embeddings WHERE video_id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("delete embeddings %s: %w", videoID, err)
	}
	return nil
}
