package repository

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"realscan/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the store gateway: a pgx connection pool plus the
// upsert, job, sweep and enrichment queries built on top of it.
type Repository struct {
	db *pgxpool.Pool

	sourceMu    sync.RWMutex
	sourceCache map[string]sourceCacheEntry
	sourceTTL   time.Duration
}

type sourceCacheEntry struct {
	src       models.Source
	expiresAt time.Time
}

// New opens the connection pool. DB_MAX_OPEN_CONNS and
// DB_MAX_IDLE_CONNS override the pool sizing; SOURCE_CACHE_TTL (a Go
// duration) overrides the source-id cache lifetime.
func New(dbURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse db url: %w", err)
	}

	if maxConnStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxConnStr != "" {
		if maxConn, err := strconv.Atoi(maxConnStr); err == nil {
			config.MaxConns = int32(maxConn)
		}
	}
	if minConnStr := os.Getenv("DB_MAX_IDLE_CONNS"); minConnStr != "" {
		if minConn, err := strconv.Atoi(minConnStr); err == nil {
			config.MinConns = int32(minConn)
		}
	}

	// Recycle connections periodically so they don't outlive deploys.
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	sourceTTL := time.Hour
	if v := getEnvDefault("SOURCE_CACHE_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			sourceTTL = d
		}
	}

	return &Repository{
		db:          pool,
		sourceCache: make(map[string]sourceCacheEntry),
		sourceTTL:   sourceTTL,
	}, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Migrate applies the schema file. Statements are idempotent, so this
// runs on every startup.
func (r *Repository) Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	_, err = r.db.Exec(context.Background(), string(content))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() {
	r.db.Close()
}

// Ping verifies the pool is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
