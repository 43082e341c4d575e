package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseConfig holds configuration required to connect to the Supabase
// project the live product reads from.
type SupabaseConfig struct {
	// ConnectionString is the Supabase Postgres connection string. If not
	// provided, it is constructed from SupabaseURL and Password.
	ConnectionString string

	// SupabaseURL is the project URL, e.g. "https://[project-ref].supabase.co".
	SupabaseURL string

	// SupabaseKey is the service-role API key for SDK access.
	SupabaseKey string

	// Password is the database password (required if ConnectionString is not
	// provided and direct SQL access is wanted).
	Password string

	// Optional pool tuning.
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// SupabaseClient provides access to the live product's Supabase project,
// either over direct Postgres or the REST SDK.
type SupabaseClient struct {
	db          *sql.DB
	supabaseSDK *supabase.Client
	cfg         SupabaseConfig
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect initializes the database connection and optionally the SDK client.
// With only URL and key (no password/connection string) the client works in
// REST API mode.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.SupabaseURL != "" && c.cfg.SupabaseKey != "" {
		sdkClient, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.supabaseSDK = sdkClient
	}

	connStr := c.cfg.ConnectionString
	if connStr == "" && c.cfg.Password != "" {
		var err error
		connStr, err = c.buildConnectionString()
		if err != nil {
			if c.supabaseSDK != nil {
				return nil // REST API mode only
			}
			return fmt.Errorf("build connection string: %w", err)
		}
	}

	if connStr != "" {
		// Disable prepared statement cache and use simple protocol to avoid
		// conflicts in parallel execution.
		connStr = c.addConnectionParam(connStr, "statement_cache_capacity", "0")
		connStr = c.addConnectionParam(connStr, "default_query_exec_mode", "simple_protocol")

		db, err := sql.Open("pgx", connStr)
		if err != nil {
			if c.supabaseSDK != nil {
				return nil // REST API mode only
			}
			return fmt.Errorf("open supabase postgres: %w", err)
		}

		if c.cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(c.cfg.MaxOpenConns)
		}
		if c.cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(c.cfg.MaxIdleConns)
		}
		if c.cfg.ConnMaxIdle > 0 {
			db.SetConnMaxIdleTime(c.cfg.ConnMaxIdle)
		}
		if c.cfg.ConnMaxLife > 0 {
			db.SetConnMaxLifetime(c.cfg.ConnMaxLife)
		}

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			if c.supabaseSDK != nil {
				return nil // REST API mode only
			}
			return fmt.Errorf("ping supabase postgres: %w", err)
		}

		c.db = db
	}

	if c.db == nil && c.supabaseSDK == nil {
		return fmt.Errorf("either connection string/password or Supabase URL+key must be provided")
	}

	return nil
}

// Close closes the database connection.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying sql.DB handle for direct database operations.
// Returns nil when only REST API mode is available.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// HasDirectDB returns true if direct database connection is available.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// SDK returns the Supabase SDK client, or nil if it was not initialized.
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.supabaseSDK
}

// buildConnectionString constructs a Supabase Postgres connection string
// from the project URL and database password.
func (c *SupabaseClient) buildConnectionString() (string, error) {
	if c.cfg.SupabaseURL == "" {
		return "", fmt.Errorf("supabase URL is required when connection string is not provided")
	}
	if c.cfg.Password == "" {
		return "", fmt.Errorf("supabase password is required when connection string is not provided")
	}

	parsedURL, err := url.Parse(c.cfg.SupabaseURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}

	host := parsedURL.Host
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid supabase URL format: expected [project-ref].supabase.co")
	}
	projectRef := parts[0]

	encodedPassword := url.QueryEscape(c.cfg.Password)
	connStr := fmt.Sprintf("postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require&statement_cache_capacity=0", encodedPassword, projectRef)

	return connStr, nil
}

// addConnectionParam adds a query parameter to the connection string if not
// already present.
func (c *SupabaseClient) addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}

	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}

	return connStr + separator + key + "=" + value
}
