package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/edgegate/internal/core/ratelimit"
)

// RateLimitEntry is a stored window with its client key.
type RateLimitEntry struct {
	ClientKey string           `json:"client_key"`
	Record    ratelimit.Record `json:"record"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RateLimitQuery selects windows for the admin commands. Exactly one of All,
// Key or Prefix is honoured, in that order.
type RateLimitQuery struct {
	All    bool
	Key    string
	Prefix string
}

var errNoSelector = errors.New("must specify --all, --key, or --prefix")

// Validate requires one selector.
func (q RateLimitQuery) Validate() error {
	_, _, err := q.where()
	return err
}

func (q RateLimitQuery) where() (string, []any, error) {
	switch {
	case q.All:
		return "", nil, nil
	case strings.TrimSpace(q.Key) != "":
		return "WHERE client_key = ?", []any{strings.TrimSpace(q.Key)}, nil
	case strings.TrimSpace(q.Prefix) != "":
		return `WHERE client_key LIKE ? ESCAPE '\'`, []any{escapeLike(strings.TrimSpace(q.Prefix)) + "%"}, nil
	default:
		return "", nil, errNoSelector
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes a client key prefix match literally.
func escapeLike(prefix string) string {
	return likeEscaper.Replace(prefix)
}

// ListRateLimits returns matching windows ordered by client key.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	where, args, err := q.where()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT client_key, request_count, window_start, updated_at FROM rate_limits `+where+` ORDER BY client_key`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			entry              RateLimitEntry
			windowStart, updAt int64
		)
		if err := rows.Scan(&entry.ClientKey, &entry.Record.Count, &windowStart, &updAt); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entry.Record.WindowStart = time.UnixMilli(windowStart).UTC()
		entry.UpdatedAt = time.UnixMilli(updAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

// CountRateLimits counts matching windows.
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM rate_limits `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

// ResetRateLimits deletes matching windows so those clients start fresh on
// their next request. It returns the number removed.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}

	s.rlMu.Lock()
	defer s.rlMu.Unlock()

	result, err := s.DB.ExecContext(ctx, `DELETE FROM rate_limits `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return affected, nil
}
