// Package replication pushes the finished knowledge graph from the pipeline
// Postgres into the Supabase project the live product reads from.
package replication

import (
	"context"
	"database/sql"
	"fmt"

	"tutorgraph/pkg/db"
	"tutorgraph/pkg/graph"

	"go.uber.org/zap"
)

// Config wires the replication dependencies.
type Config struct {
	// Source is the pipeline's own Postgres.
	Source db.DBProvider

	// Target is the live product's Supabase Postgres.
	Target db.DBProvider

	Log *zap.SugaredLogger
}

// Replicator copies completed videos' graph rows to the target. Concepts are
// shared state and always overwritten from the source; per-video tables are
// copied only for videos the target has not seen, so replication is safe to
// re-run.
type Replicator struct {
	src db.DBProvider
	dst db.DBProvider
	log *zap.SugaredLogger
}

// videoTables are the per-video tables copied verbatim, with the columns in
// source order.
var videoTables = []struct {
	name    string
	columns []string
}{
	{"video_context", []string{"video_id", "title", "channel_name", "transcript", "concept_names", "chapter_count", "quiz_count", "moment_count", "summary", "rebuilt_at"}},
	{"concept_videos", []string{"concept_name", "video_id"}},
	{"concept_mentions", []string{"video_id", "concept_name", "role", "first_mentioned_at"}},
	{"chapters", []string{"video_id", "position", "title", "start_sec", "end_sec", "summary", "concepts"}},
	{"moments", []string{"video_id", "position", "kind", "concept_name", "ts", "body", "payload"}},
	{"quiz_questions", []string{"video_id", "position", "question", "options", "answer", "explanation", "concept_name", "difficulty", "ts"}},
	{"external_references", []string{"video_id", "position", "kind", "title", "url", "context", "resolved_title", "resolved_excerpt"}},
	{"video_links", []string{"source_video_id", "target_video_id", "kind", "shared_concepts", "confidence", "rationale", "created_at"}},
}

// NewReplicator validates the wiring.
func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil || cfg.Source.DB() == nil {
		return nil, fmt.Errorf("source postgres is required")
	}
	if cfg.Target == nil || cfg.Target.DB() == nil {
		return nil, fmt.Errorf("target postgres is required")
	}
	return &Replicator{src: cfg.Source, dst: cfg.Target, log: cfg.Log}, nil
}

// ReplicateGraph pushes the given completed videos, plus the shared concept
// and relation state, to the target.
func (r *Replicator) ReplicateGraph(ctx context.Context, videoIDs []string) error {
	if err := r.ensureTargetSchema(ctx); err != nil {
		return err
	}

	if err := r.replicateConcepts(ctx); err != nil {
		return err
	}
	if err := r.replicateRelations(ctx); err != nil {
		return err
	}

	existing, err := r.existingVideos(ctx, videoIDs)
	if err != nil {
		return err
	}
	var fresh []string
	for _, id := range videoIDs {
		if !existing[id] {
			fresh = append(fresh, id)
		}
	}
	r.log.Infow("replicating videos", "total", len(videoIDs), "already_present", len(existing), "new", len(fresh))

	for _, id := range fresh {
		if err := r.replicateVideo(ctx, id); err != nil {
			return fmt.Errorf("replicate video %s: %w", id, err)
		}
	}
	r.log.Infow("replication complete", "videos_copied", len(fresh))
	return nil
}

func (r *Replicator) ensureTargetSchema(ctx context.Context) error {
	for _, stmt := range graph.Schema() {
		if _, err := r.dst.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure target schema: %w", err)
		}
	}
	return nil
}

// replicateConcepts overwrites the target's concept rows with the source's.
// The source merge state is authoritative: video counts and definitions
// change as new videos complete.
func (r *Replicator) replicateConcepts(ctx context.Context) error {
	rows, err := r.src.DB().QueryContext(ctx, `
		SELECT name, display_name, definition, aliases::text, domain_tags::text, category, difficulty, video_count
		FROM concepts`)
	if err != nil {
		return fmt.Errorf("read concepts: %w", err)
	}
	defer rows.Close()

	tx, err := r.dst.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin concepts tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO concepts (name, display_name, definition, aliases, domain_tags, category, difficulty, video_count)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name, definition = EXCLUDED.definition,
			aliases = EXCLUDED.aliases, domain_tags = EXCLUDED.domain_tags,
			category = EXCLUDED.category, difficulty = EXCLUDED.difficulty,
			video_count = EXCLUDED.video_count`)
	if err != nil {
		return fmt.Errorf("prepare concepts upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for rows.Next() {
		var name, display, def, aliases, tags, category, difficulty string
		var videoCount int
		if err := rows.Scan(&name, &display, &def, &aliases, &tags, &category, &difficulty, &videoCount); err != nil {
			return fmt.Errorf("scan concept: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, name, display, def, aliases, tags, category, difficulty, videoCount); err != nil {
			return fmt.Errorf("upsert concept %s: %w", name, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit concepts: %w", err)
	}
	r.log.Infow("concepts replicated", "count", count)
	return nil
}

func (r *Replicator) replicateRelations(ctx context.Context) error {
	rows, err := r.src.DB().QueryContext(ctx, `
		SELECT source, target, type, confidence FROM concept_relations`)
	if err != nil {
		return fmt.Errorf("read relations: %w", err)
	}
	defer rows.Close()

	tx, err := r.dst.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin relations tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO concept_relations (source, target, type, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, target, type) DO UPDATE SET confidence = EXCLUDED.confidence`)
	if err != nil {
		return fmt.Errorf("prepare relations upsert: %w", err)
	}
	defer stmt.Close()

	for rows.Next() {
		var source, target, typ string
		var confidence float64
		if err := rows.Scan(&source, &target, &typ, &confidence); err != nil {
			return fmt.Errorf("scan relation: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, source, target, typ, confidence); err != nil {
			return fmt.Errorf("upsert relation %s->%s: %w", source, target, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return tx.Commit()
}

// existingVideos returns which of the given videos the target already has.
func (r *Replicator) existingVideos(ctx context.Context, videoIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(videoIDs) == 0 {
		return existing, nil
	}

	query := `SELECT video_id FROM video_context WHERE video_id IN (`
	args := make([]any, len(videoIDs))
	for i, id := range videoIDs {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query += ")"

	rows, err := r.dst.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// replicateVideo copies one video's rows across every per-video table in a
// single target transaction.
func (r *Replicator) replicateVideo(ctx context.Context, videoID string) error {
	tx, err := r.dst.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range videoTables {
		if err := r.copyTableRows(ctx, tx, table.name, table.columns, videoID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Replicator) copyTableRows(ctx context.Context, tx *sql.Tx, table string, columns []string, videoID string) error {
	keyColumn := "video_id"
	if table == "video_links" {
		keyColumn = "source_video_id"
	}

	selectQuery := "SELECT " + joinColumns(columns) + " FROM " + table + " WHERE " + keyColumn + " = $1"
	rows, err := r.src.DB().QueryContext(ctx, selectQuery, videoID)
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	insertQuery := "INSERT INTO " + table + " (" + joinColumns(columns) + ") VALUES (" + placeholders(len(columns)) + ") ON CONFLICT DO NOTHING"
	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("insert %s for %s: %w", table, videoID, err)
		}
	}
	return rows.Err()
}

func joinColumns(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += fmt.Sprintf("$%d", i)
	}
	return out
}
