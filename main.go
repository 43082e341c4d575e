// Command tutorgraph runs the knowledge extraction worker: it drains the
// pending manifest through transcription, batch extraction, graph
// normalization, enrichment and embedding, then links related videos.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorgraph/pkg/config"
	"tutorgraph/pkg/content"
	"tutorgraph/pkg/db"
	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/embedding"
	"tutorgraph/pkg/extraction"
	"tutorgraph/pkg/graph"
	"tutorgraph/pkg/linking"
	"tutorgraph/pkg/logging"
	"tutorgraph/pkg/pipeline"
	"tutorgraph/pkg/replication"
	"tutorgraph/pkg/transcript"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	var (
		batchSize   = flag.Int("batch", 20, "Videos per extraction batch")
		poll        = flag.Duration("poll", time.Minute, "Batch poll interval")
		model       = flag.String("model", "gpt-4o-mini", "Extraction model")
		channelID   = flag.String("channel", "", "Only process videos from this channel")
		tier        = flag.String("tier", "", "Only process videos of this tier")
		dryRun      = flag.Bool("dry-run", false, "Report the cost estimate without submitting anything")
		retryFailed = flag.Bool("retry-failed", false, "Reset failed items to pending before running")
		replicate   = flag.Bool("replicate", false, "Push completed videos to Supabase after the run")
	)
	flag.Parse()

	cfg := config.Load()
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.OpenAIKey == "" && !*dryRun {
		log.Fatalw("OPENAI_API_KEY is required")
	}
	if cfg.PostgresDSN == "" {
		log.Fatalw("POSTGRES_DSN is required")
	}

	ctx := context.Background()

	store := db.NewStore(cfg.MongoURI, cfg.MongoDatabase)
	if err := store.Connect(ctx); err != nil {
		log.Fatalw("connect to mongo", "error", err)
	}
	defer store.Close(ctx)

	pg := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN})
	if err := pg.Connect(ctx); err != nil {
		log.Fatalw("connect to postgres", "error", err)
	}
	defer pg.Close()

	graphStore := graph.NewStore(pg, log)
	graphStore.SetEmbeddingDim(cfg.EmbeddingDim)
	if err := graphStore.EnsureSchema(ctx); err != nil {
		log.Fatalw("ensure graph schema", "error", err)
	}

	var hot *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalw("parse redis url", "error", err)
		}
		hot = redis.NewClient(opts)
		defer hot.Close()
	}

	gate := transcript.NewGate(cfg.ScrapeInterval)
	funnel := transcript.NewFunnel(
		transcript.NewCache(hot, store, log),
		transcript.NewScraper(gate, log),
		transcript.NewPool(cfg.WhisperInstances, cfg.WhisperBusyRetries, log),
		cfg.TranscribeConcurrency,
		log,
	)

	provider := extraction.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	embedder := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingDim)
	classifier := linking.NewChatClassifier(extraction.NewChatClient(cfg.OpenAIKey, cfg.OpenAIBaseURL), *model)
	linker := linking.NewLinker(graphStore, graphStore, classifier, cfg.LinkConcurrency, log)

	runner := pipeline.NewRunner(
		store,
		graphStore,
		provider,
		funnel,
		pipeline.NewNormalizer(graphStore, log),
		pipeline.NewEnricher(graphStore, content.NewResolver(), log),
		pipeline.NewEmbedStep(graphStore, embedder, log),
		linker,
		pipeline.Options{
			BatchSize:    *batchSize,
			PollInterval: *poll,
			Model:        *model,
			ChannelID:    *channelID,
			Tier:         *tier,
			DryRun:       *dryRun,
			RetryFailed:  *retryFailed,
		},
		log,
	)

	// First signal finishes the current cycle and exits cleanly; a second
	// one aborts immediately.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infow("stop requested, finishing current cycle")
		runner.RequestStop()
		<-sigCh
		log.Errorw("second signal, aborting")
		os.Exit(1)
	}()

	summary, err := runner.Run(ctx)
	logSummary(log, summary)
	if err != nil {
		log.Fatalw("run aborted", "error", err)
	}

	if *replicate && !*dryRun {
		if err := replicateCompleted(ctx, cfg, store, pg, log); err != nil {
			log.Fatalw("replication failed", "error", err)
		}
	}
}

func logSummary(log *zap.SugaredLogger, s *pipeline.Summary) {
	log.Infow("run summary",
		"cycles", s.Cycles,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"left_pending", s.LeftPending,
		"estimated_cost_usd", fmt.Sprintf("%.4f", s.EstimatedCostUSD),
		"failed_video_ids", s.FailedVideoIDs,
	)
}

func replicateCompleted(ctx context.Context, cfg config.Config, store *db.Store, pg *db.PostgresClient, log *zap.SugaredLogger) error {
	supa := db.NewSupabaseClient(db.SupabaseConfig{
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Password:    cfg.SupabasePassword,
	})
	if err := supa.Connect(ctx); err != nil {
		return err
	}
	defer supa.Close()
	if !supa.HasDirectDB() {
		return fmt.Errorf("supabase replication needs a direct database connection")
	}

	replicator, err := replication.NewReplicator(replication.Config{
		Source: pg,
		Target: supa,
		Log:    log,
	})
	if err != nil {
		return err
	}

	records, err := store.ListByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return err
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.VideoID
	}
	return replicator.ReplicateGraph(ctx, ids)
}
