// Package graph persists the shared knowledge graph: concepts merged across
// videos, per-video child facts with replace semantics, and cross-video
// links.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tutorgraph/pkg/db"
	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
)

// Store executes graph reads and writes against Postgres.
type Store struct {
	pg           db.DBProvider
	log          *zap.SugaredLogger
	embeddingDim int
}

// NewStore wraps a connected Postgres provider.
func NewStore(pg db.DBProvider, log *zap.SugaredLogger) *Store {
	return &Store{pg: pg, log: log}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS concepts (
		name TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		definition TEXT NOT NULL DEFAULT '',
		aliases JSONB NOT NULL DEFAULT '[]',
		domain_tags JSONB NOT NULL DEFAULT '[]',
		category TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		video_count INT NOT NULL DEFAULT 0
	)`,
	// One row per (concept, video) ever merged. Never deleted, so re-running
	// normalization cannot double-count a video in concepts.video_count.
	`CREATE TABLE IF NOT EXISTS concept_videos (
		concept_name TEXT NOT NULL,
		video_id TEXT NOT NULL,
		PRIMARY KEY (concept_name, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS concept_mentions (
		video_id TEXT NOT NULL,
		concept_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		first_mentioned_at DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (video_id, concept_name)
	)`,
	`CREATE TABLE IF NOT EXISTS concept_relations (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		type TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (source, target, type)
	)`,
	`CREATE TABLE IF NOT EXISTS chapters (
		video_id TEXT NOT NULL,
		position INT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		start_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
		end_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		concepts JSONB NOT NULL DEFAULT '[]',
		PRIMARY KEY (video_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS moments (
		video_id TEXT NOT NULL,
		position INT NOT NULL,
		kind TEXT NOT NULL,
		concept_name TEXT NOT NULL DEFAULT '',
		ts DOUBLE PRECISION NOT NULL DEFAULT 0,
		body TEXT NOT NULL DEFAULT '',
		payload JSONB NOT NULL DEFAULT '{}',
		PRIMARY KEY (video_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_questions (
		video_id TEXT NOT NULL,
		position INT NOT NULL,
		question TEXT NOT NULL,
		options JSONB NOT NULL DEFAULT '[]',
		answer INT NOT NULL DEFAULT 0,
		explanation TEXT NOT NULL DEFAULT '',
		concept_name TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		ts DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (video_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS external_references (
		video_id TEXT NOT NULL,
		position INT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '',
		resolved_title TEXT NOT NULL DEFAULT '',
		resolved_excerpt TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (video_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS video_context (
		video_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		channel_name TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '',
		concept_names TEXT NOT NULL DEFAULT '',
		chapter_count INT NOT NULL DEFAULT 0,
		quiz_count INT NOT NULL DEFAULT 0,
		moment_count INT NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		rebuilt_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS video_links (
		source_video_id TEXT NOT NULL,
		target_video_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		shared_concepts JSONB NOT NULL DEFAULT '[]',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		rationale TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (source_video_id, target_video_id)
	)`,
}

// Schema returns the DDL for the relational graph tables, excluding the
// pgvector-backed embeddings table. Replication applies the same DDL to the
// target project, which may not have the vector extension.
func Schema() []string {
	return schemaStatements
}

// EnsureSchema creates the graph tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pg.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return s.ensureEmbeddingSchema(ctx)
}

// MergeConcept merges one video's view of a concept into the shared row.
//
// The merge is a read-modify-write against the current stored state inside
// one transaction with the row locked, so two videos normalizing the same
// new concept concurrently cannot lose updates. video_count increments only
// when the (concept, video) marker row is inserted for the first time, which
// makes a retried merge idempotent.
func (s *Store) MergeConcept(ctx context.Context, videoID string, c domain.ExtractedConcept) error {
	tx, err := s.pg.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback()

	aliasesJSON := mustJSON(dedupe(c.Aliases))
	tagsJSON := mustJSON(dedupe(c.DomainTags))

	// Make sure the row exists; a concurrent inserter winning the race is
	// fine, the SELECT below sees its committed row.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO concepts (name, display_name, definition, aliases, domain_tags, category, difficulty, video_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		ON CONFLICT (name) DO NOTHING`,
		c.Name, c.DisplayName, c.Definition, aliasesJSON, tagsJSON, c.Category, c.Difficulty)
	if err != nil {
		return fmt.Errorf("insert concept %s: %w", c.Name, err)
	}

	var storedDefinition, storedAliases, storedTags string
	err = tx.QueryRowContext(ctx, `
		SELECT definition, aliases::text, domain_tags::text
		FROM concepts WHERE name = $1 FOR UPDATE`, c.Name).
		Scan(&storedDefinition, &storedAliases, &storedTags)
	if err != nil {
		return fmt.Errorf("lock concept %s: %w", c.Name, err)
	}

	merged := MergeConceptValues(ConceptValues{
		Definition: storedDefinition,
		Aliases:    fromJSON(storedAliases),
		DomainTags: fromJSON(storedTags),
	}, ConceptValues{
		Definition: c.Definition,
		Aliases:    c.Aliases,
		DomainTags: c.DomainTags,
	})

	_, err = tx.ExecContext(ctx, `
		UPDATE concepts SET definition = $2, aliases = $3, domain_tags = $4 WHERE name = $1`,
		c.Name, merged.Definition, mustJSON(merged.Aliases), mustJSON(merged.DomainTags))
	if err != nil {
		return fmt.Errorf("update concept %s: %w", c.Name, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO concept_videos (concept_name, video_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, c.Name, videoID)
	if err != nil {
		return fmt.Errorf("mark concept video %s/%s: %w", c.Name, videoID, err)
	}
	if inserted, _ := res.RowsAffected(); inserted == 1 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE concepts SET video_count = video_count + 1 WHERE name = $1`, c.Name); err != nil {
			return fmt.Errorf("increment video_count %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge %s: %w", c.Name, err)
	}
	return nil
}

// ConceptValues are the merge-relevant fields of a concept.
type ConceptValues struct {
	Definition string
	Aliases    []string
	DomainTags []string
}

// MergeConceptValues combines the stored and incoming views of a concept:
// alias and tag sets union, the definition is replaced only by a strictly
// longer candidate.
func MergeConceptValues(stored, incoming ConceptValues) ConceptValues {
	out := ConceptValues{
		Definition: stored.Definition,
		Aliases:    dedupe(append(append([]string{}, stored.Aliases...), incoming.Aliases...)),
		DomainTags: dedupe(append(append([]string{}, stored.DomainTags...), incoming.DomainTags...)),
	}
	if len(incoming.Definition) > len(stored.Definition) {
		out.Definition = incoming.Definition
	}
	return out
}

// GetConcept loads one concept by canonical name, or nil when absent.
func (s *Store) GetConcept(ctx context.Context, name string) (*domain.Concept, error) {
	var c domain.Concept
	var aliases, tags string
	err := s.pg.DB().QueryRowContext(ctx, `
		SELECT name, display_name, definition, aliases::text, domain_tags::text, category, difficulty, video_count
		FROM concepts WHERE name = $1`, name).
		Scan(&c.Name, &c.DisplayName, &c.Definition, &aliases, &tags, &c.Category, &c.Difficulty, &c.VideoCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get concept %s: %w", name, err)
	}
	c.Aliases = fromJSON(aliases)
	c.DomainTags = fromJSON(tags)
	return &c, nil
}

// ReplaceMentions applies replace semantics for one video's mentions: the
// rows afterwards are exactly the mentions implied by the latest extraction.
func (s *Store) ReplaceMentions(ctx context.Context, videoID string, mentions []domain.ConceptMention) error {
	return s.replace(ctx, videoID, "concept_mentions", func(tx *sql.Tx) error {
		for _, m := range mentions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO concept_mentions (video_id, concept_name, role, first_mentioned_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (video_id, concept_name) DO UPDATE
				SET role = EXCLUDED.role, first_mentioned_at = EXCLUDED.first_mentioned_at`,
				videoID, m.ConceptName, m.Role, m.FirstMentionedAt)
			if err != nil {
				return fmt.Errorf("insert mention %s/%s: %w", videoID, m.ConceptName, err)
			}
		}
		return nil
	})
}

// UpsertRelations writes concept relations, unique on (source, target, type).
// A repeated relation keeps the higher confidence.
func (s *Store) UpsertRelations(ctx context.Context, relations []domain.ConceptRelation) error {
	for _, r := range relations {
		_, err := s.pg.DB().ExecContext(ctx, `
			INSERT INTO concept_relations (source, target, type, confidence)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (source, target, type) DO UPDATE
			SET confidence = GREATEST(concept_relations.confidence, EXCLUDED.confidence)`,
			r.Source, r.Target, r.Type, r.Confidence)
		if err != nil {
			return fmt.Errorf("upsert relation %s->%s: %w", r.Source, r.Target, err)
		}
	}
	return nil
}

// ReplaceChapters applies replace semantics for one video's chapters.
func (s *Store) ReplaceChapters(ctx context.Context, videoID string, chapters []domain.ChapterSummary) error {
	return s.replace(ctx, videoID, "chapters", func(tx *sql.Tx) error {
		for i, ch := range chapters {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chapters (video_id, position, title, start_sec, end_sec, summary, concepts)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				videoID, i, ch.Title, ch.StartSec, ch.EndSec, ch.Summary, mustJSON(ch.Concepts))
			if err != nil {
				return fmt.Errorf("insert chapter %s#%d: %w", videoID, i, err)
			}
		}
		return nil
	})
}

// ReplaceMoments applies replace semantics for one video's moments.
func (s *Store) ReplaceMoments(ctx context.Context, videoID string, moments []domain.Moment) error {
	return s.replace(ctx, videoID, "moments", func(tx *sql.Tx) error {
		for i, m := range moments {
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encode moment %s#%d: %w", videoID, i, err)
			}
			base := m.Base()
			_, err = tx.ExecContext(ctx, `
				INSERT INTO moments (video_id, position, kind, concept_name, ts, body, payload)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				videoID, i, string(m.Kind()), base.Concept, base.Timestamp, domain.MomentText(m), string(payload))
			if err != nil {
				return fmt.Errorf("insert moment %s#%d: %w", videoID, i, err)
			}
		}
		return nil
	})
}

// ReplaceQuizzes applies replace semantics for one video's quiz questions.
func (s *Store) ReplaceQuizzes(ctx context.Context, videoID string, quizzes []domain.QuizQuestion) error {
	return s.replace(ctx, videoID, "quiz_questions", func(tx *sql.Tx) error {
		for i, q := range quizzes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO quiz_questions (video_id, position, question, options, answer, explanation, concept_name, difficulty, ts)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				videoID, i, q.Question, mustJSON(q.Options), q.Answer, q.Explanation, q.Concept, q.Difficulty, q.Timestamp)
			if err != nil {
				return fmt.Errorf("insert quiz %s#%d: %w", videoID, i, err)
			}
		}
		return nil
	})
}

// ReplaceReferences applies replace semantics for one video's external
// references.
func (s *Store) ReplaceReferences(ctx context.Context, videoID string, refs []domain.ExternalReference) error {
	return s.replace(ctx, videoID, "external_references", func(tx *sql.Tx) error {
		for i, r := range refs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO external_references (video_id, position, kind, title, url, context)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				videoID, i, r.Kind, r.Title, r.URL, r.Context)
			if err != nil {
				return fmt.Errorf("insert reference %s#%d: %w", videoID, i, err)
			}
		}
		return nil
	})
}

// ResolveReference records the title and excerpt fetched for a reference URL.
func (s *Store) ResolveReference(ctx context.Context, videoID, url, title, excerpt string) error {
	_, err := s.pg.DB().ExecContext(ctx, `
		UPDATE external_references SET resolved_title = $3, resolved_excerpt = $4
		WHERE video_id = $1 AND url = $2`, videoID, url, title, excerpt)
	if err != nil {
		return fmt.Errorf("resolve reference %s %s: %w", videoID, url, err)
	}
	return nil
}

// ReferenceURLs returns the distinct non-empty reference URLs for a video.
func (s *Store) ReferenceURLs(ctx context.Context, videoID string) ([]string, error) {
	rows, err := s.pg.DB().QueryContext(ctx, `
		SELECT DISTINCT url FROM external_references
		WHERE video_id = $1 AND url <> ''`, videoID)
	if err != nil {
		return nil, fmt.Errorf("reference urls %s: %w", videoID, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// UpsertVideoContext stores the per-video title, channel and enriched
// transcript blob.
func (s *Store) UpsertVideoContext(ctx context.Context, videoID, title, channel, transcript string) error {
	_, err := s.pg.DB().ExecContext(ctx, `
		INSERT INTO video_context (video_id, title, channel_name, transcript)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id) DO UPDATE
		SET title = EXCLUDED.title, channel_name = EXCLUDED.channel_name, transcript = EXCLUDED.transcript`,
		videoID, title, channel, transcript)
	if err != nil {
		return fmt.Errorf("upsert video context %s: %w", videoID, err)
	}
	return nil
}

// RebuildVideoContext recomputes the denormalized per-video summary from the
// current child rows. Safe to re-run at any time.
func (s *Store) RebuildVideoContext(ctx context.Context, videoID string) error {
	_, err := s.pg.DB().ExecContext(ctx, `
		UPDATE video_context SET
			concept_names = COALESCE((
				SELECT string_agg(concept_name, ', ' ORDER BY first_mentioned_at)
				FROM concept_mentions WHERE video_id = $1), ''),
			chapter_count = (SELECT count(*) FROM chapters WHERE video_id = $1),
			quiz_count = (SELECT count(*) FROM quiz_questions WHERE video_id = $1),
			moment_count = (SELECT count(*) FROM moments WHERE video_id = $1),
			summary = COALESCE((
				SELECT string_agg(summary, ' ' ORDER BY position)
				FROM chapters WHERE video_id = $1), ''),
			rebuilt_at = now()
		WHERE video_id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("rebuild video context %s: %w", videoID, err)
	}
	return nil
}

// GetVideoContext returns the stored title, channel and concept list for a
// video, used to prompt the link classifier.
func (s *Store) GetVideoContext(ctx context.Context, videoID string) (title, channel, conceptNames string, err error) {
	err = s.pg.DB().QueryRowContext(ctx, `
		SELECT title, channel_name, concept_names FROM video_context WHERE video_id = $1`, videoID).
		Scan(&title, &channel, &conceptNames)
	if err == sql.ErrNoRows {
		return "", "", "", fmt.Errorf("no video context for %s", videoID)
	}
	if err != nil {
		return "", "", "", fmt.Errorf("get video context %s: %w", videoID, err)
	}
	return title, channel, conceptNames, nil
}

// MentionsForVideos loads every concept mention belonging to the given
// videos, the input to the cross-video linking index.
func (s *Store) MentionsForVideos(ctx context.Context, videoIDs []string) ([]domain.ConceptMention, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	idsJSON := mustJSON(videoIDs)
	rows, err := s.pg.DB().QueryContext(ctx, `
		SELECT video_id, concept_name, role, first_mentioned_at
		FROM concept_mentions
		WHERE video_id IN (SELECT jsonb_array_elements_text($1::jsonb))`, idsJSON)
	if err != nil {
		return nil, fmt.Errorf("mentions for videos: %w", err)
	}
	defer rows.Close()

	var mentions []domain.ConceptMention
	for rows.Next() {
		var m domain.ConceptMention
		if err := rows.Scan(&m.VideoID, &m.ConceptName, &m.Role, &m.FirstMentionedAt); err != nil {
			return nil, err
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// UpsertLink writes one directed cross-video edge. Re-classifying a pair
// overwrites the previous edge.
func (s *Store) UpsertLink(ctx context.Context, link domain.CrossVideoLink) error {
	_, err := s.pg.DB().ExecContext(ctx, `
		INSERT INTO video_links (source_video_id, target_video_id, kind, shared_concepts, confidence, rationale)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_video_id, target_video_id) DO UPDATE
		SET kind = EXCLUDED.kind, shared_concepts = EXCLUDED.shared_concepts,
		    confidence = EXCLUDED.confidence, rationale = EXCLUDED.rationale`,
		link.SourceVideoID, link.TargetVideoID, string(link.Kind),
		mustJSON(link.SharedConcepts), link.Confidence, link.Rationale)
	if err != nil {
		return fmt.Errorf("upsert link %s->%s: %w", link.SourceVideoID, link.TargetVideoID, err)
	}
	return nil
}

// LinkedPairs returns the set of unordered pairs that already have edges, so
// the link pass does not pay to classify a pair twice.
func (s *Store) LinkedPairs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pg.DB().QueryContext(ctx, `
		SELECT source_video_id, target_video_id FROM video_links`)
	if err != nil {
		return nil, fmt.Errorf("linked pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[string]bool)
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		pairs[PairKey(a, b)] = true
	}
	return pairs, rows.Err()
}

// PairKey builds an order-independent key for a video pair.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// replace runs deleteByVideo + inserts in one transaction. Deletes are
// scoped to the one video ID, which is what makes each sub-step safe to
// retry.
func (s *Store) replace(ctx context.Context, videoID, table string, insert func(tx *sql.Tx) error) error {
	tx, err := s.pg.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("delete %s for %s: %w", table, videoID, err)
	}
	if err := insert(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func mustJSON(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func fromJSON(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
