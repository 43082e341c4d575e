package pipeline

import (
	"context"

	"tutorgraph/pkg/domain"
)

// StateStore is the key-value state surface the runner drives: manifest,
// progress records, transcript cache and raw extraction blobs.
type StateStore interface {
	PendingBatch(ctx context.Context, limit int, channelID, tier string) ([]domain.ManifestEntry, error)
	GetManifestEntry(ctx context.Context, videoID string) (*domain.ManifestEntry, error)

	GetProgress(ctx context.Context, videoID string) (*domain.ProgressRecord, error)
	EnsureProgress(ctx context.Context, videoID string) (*domain.ProgressRecord, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.ProgressRecord, error)
	SetStatus(ctx context.Context, videoID string, status domain.Status) error
	MarkFailed(ctx context.Context, videoID, message string) error
	MergeMetadata(ctx context.Context, videoID string, meta map[string]string) error
	ResetFailed(ctx context.Context) (int, error)

	GetTranscript(ctx context.Context, videoID string) (*domain.TranscriptRecord, error)

	PutRawExtraction(ctx context.Context, videoID, model, raw string) error
	GetRawExtraction(ctx context.Context, videoID string) (string, error)
}

// GraphStore is the knowledge-graph surface the normalize, connect, enrich
// and embed steps write to.
type GraphStore interface {
	MergeConcept(ctx context.Context, videoID string, c domain.ExtractedConcept) error
	ReplaceMentions(ctx context.Context, videoID string, mentions []domain.ConceptMention) error
	UpsertRelations(ctx context.Context, relations []domain.ConceptRelation) error
	ReplaceChapters(ctx context.Context, videoID string, chapters []domain.ChapterSummary) error
	ReplaceMoments(ctx context.Context, videoID string, moments []domain.Moment) error
	ReplaceQuizzes(ctx context.Context, videoID string, quizzes []domain.QuizQuestion) error
	ReplaceReferences(ctx context.Context, videoID string, refs []domain.ExternalReference) error

	UpsertVideoContext(ctx context.Context, videoID, title, channel, transcript string) error
	RebuildVideoContext(ctx context.Context, videoID string) error
	ReferenceURLs(ctx context.Context, videoID string) ([]string, error)
	ResolveReference(ctx context.Context, videoID, url, title, excerpt string) error

	UpsertEmbedding(ctx context.Context, videoID, kind, refKey, content string, vec []float32) error
	DeleteEmbeddings(ctx context.Context, videoID string) error
}

// Embedder produces vectors for text fragments.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
