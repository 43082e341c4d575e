// Package config loads pipeline configuration from the environment.
//
// A .env file in the working directory is honored when present (local runs);
// in deployment the variables come from the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-sourced knob. Runtime flags (batch size,
// dry-run, filters) live on the command line, not here.
type Config struct {
	// Stores.
	MongoURI      string
	MongoDatabase string
	PostgresDSN   string
	RedisURL      string // optional hot transcript cache tier

	// Live-product replication target (optional).
	SupabaseURL      string
	SupabaseKey      string
	SupabasePassword string

	// Inference provider.
	OpenAIKey     string
	OpenAIBaseURL string // optional override, e.g. a gateway

	// Embedding endpoint. Defaults to the local GPU embedding service,
	// which exposes POST /embed on port 8766 and fixes the model
	// server-side.
	EmbeddingBaseURL string
	EmbeddingDim     int

	// Transcription funnel.
	WhisperInstances      []string
	ScrapeInterval        time.Duration
	TranscribeConcurrency int
	WhisperBusyRetries    int

	// Cross-video linking.
	LinkConcurrency int

	LogMode string
}

// Load reads the environment (and .env, if present) into a Config.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		MongoURI:      Str("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: Str("MONGO_DATABASE", "tutorgraph"),
		PostgresDSN:   Str("POSTGRES_DSN", ""),
		RedisURL:      Str("REDIS_URL", ""),

		SupabaseURL:      Str("SUPABASE_URL", ""),
		SupabaseKey:      Str("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabasePassword: Str("SUPABASE_DB_PASSWORD", ""),

		OpenAIKey:     Str("OPENAI_API_KEY", ""),
		OpenAIBaseURL: Str("OPENAI_BASE_URL", ""),

		EmbeddingBaseURL: Str("EMBEDDING_BASE_URL", "http://localhost:8766"),
		EmbeddingDim:     Int("EMBEDDING_DIM", 1024),

		WhisperInstances:      List("WHISPER_INSTANCES", ""),
		ScrapeInterval:        Duration("SCRAPE_INTERVAL", 3*time.Second),
		TranscribeConcurrency: Int("TRANSCRIBE_CONCURRENCY", 8),
		WhisperBusyRetries:    Int("WHISPER_BUSY_RETRIES", 4),

		LinkConcurrency: Int("LINK_CONCURRENCY", 3),

		LogMode: Str("LOG_MODE", "dev"),
	}
}

// Str reads a string variable with a default.
func Str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int reads an integer variable with a default.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration reads a duration variable ("30s", "5m") with a default.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// List reads a comma-separated variable with a default.
func List(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
