// Package postgres provides the Postgres-backed channel store.
//
// Expected schema:
//
//	CREATE TABLE channels (
//		id               TEXT PRIMARY KEY,
//		name             TEXT NOT NULL,
//		url              TEXT NOT NULL,
//		sort_order       INT NOT NULL DEFAULT 0,
//		status           TEXT,
//		response_time_ms BIGINT,
//		last_checked_at  TIMESTAMPTZ,
//		error_message    TEXT
//	);
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/storage"
)

const (
	listChannelsSQL = `SELECT id, name, url FROM channels ORDER BY sort_order, id`
	applyResultSQL  = `UPDATE channels SET status = $1, response_time_ms = $2, last_checked_at = $3, error_message = $4 WHERE id = $5`
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// ChannelStore reads channels from and writes probe results to Postgres.
type ChannelStore struct {
	pool queryExecCloser
}

// NewChannelStore creates a Postgres-backed ChannelStore using the provided config.
func NewChannelStore(ctx context.Context, cfg Config) (*ChannelStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ChannelStore{pool: pool}, nil
}

// NewChannelStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewChannelStoreWithPool(pool queryExecCloser) (*ChannelStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ChannelStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ChannelStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *ChannelStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// ListChannels returns every channel ordered by sort_order then id.
func (s *ChannelStore) ListChannels(ctx context.Context) ([]channel.Channel, error) {
	rows, err := s.pool.Query(ctx, listChannelsSQL)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []channel.Channel
	for rows.Next() {
		var ch channel.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.URL); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return out, nil
}

// ApplyResult writes the probe result onto the channel row.
func (s *ChannelStore) ApplyResult(ctx context.Context, result channel.ChannelTestResult) error {
	tag, err := s.pool.Exec(ctx, applyResultSQL, resultArgs(result)...)
	if err != nil {
		return fmt.Errorf("update channel status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update channel %s: %w", result.ChannelID, storage.ErrNotFound)
	}
	return nil
}

func resultArgs(result channel.ChannelTestResult) []any {
	var responseTime, errorMessage any
	if result.ResponseTimeMs != nil {
		responseTime = *result.ResponseTimeMs
	}
	if result.ErrorMessage != "" {
		errorMessage = result.ErrorMessage
	}
	return []any{string(result.Status), responseTime, result.TestedAt, errorMessage, result.ChannelID}
}
