package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/edgegate/internal/core/ratelimit"
)

// GetRateLimit returns the stored window for a client key, or nil.
func (s *Store) GetRateLimit(ctx context.Context, key string) (*ratelimit.Record, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("client key is required")
	}

	return getRateLimit(ctx, s.DB, key)
}

// UpdateRateLimit loads the record for key, passes it to fn and persists the
// record fn returns. A nil return leaves the row unchanged. The read and the
// write run in one transaction.
func (s *Store) UpdateRateLimit(ctx context.Context, key string, fn func(*ratelimit.Record) *ratelimit.Record) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if fn == nil {
		return errors.New("update function is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("client key is required")
	}

	s.rlMu.Lock()
	defer s.rlMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rate limit update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getRateLimit(ctx, tx, key)
	if err != nil {
		return err
	}

	next := fn(current)
	if next == nil {
		return tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_limits (client_key, request_count, window_start, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_key) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			updated_at = excluded.updated_at
	`, key, next.Count, next.WindowStart.UTC().UnixMilli(), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rate limit: %w", err)
	}
	return nil
}

// PruneRateLimits deletes windows that started at or before cutoff.
func (s *Store) PruneRateLimits(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM rate_limits
		WHERE window_start <= ?
	`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune rate limits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rate limits: %w", err)
	}
	return affected, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRateLimit(ctx context.Context, q rowQuerier, key string) (*ratelimit.Record, error) {
	var (
		requestCount int
		windowStart  int64
	)

	row := q.QueryRowContext(ctx, `
		SELECT request_count, window_start
		FROM rate_limits
		WHERE client_key = ?
	`, key)

	if err := row.Scan(&requestCount, &windowStart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	return &ratelimit.Record{
		Count:       requestCount,
		WindowStart: time.UnixMilli(windowStart).UTC(),
	}, nil
}
