package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/edgegate/internal/core/contact"
)

// ContactQuery filters contact submission listings.
type ContactQuery struct {
	Since time.Time
	Email string
	Limit int
}

// Save persists a contact submission. It satisfies contact.Sink.
func (s *Store) Save(ctx context.Context, sub contact.Submission) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(sub.ID) == "" {
		return errors.New("submission id is required")
	}

	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO contact_submissions
			(id, name, email, company, phone, service, message, client_key, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID,
		sub.Form.Name,
		sub.Form.Email,
		nullString(sub.Form.Company),
		nullString(sub.Form.Phone),
		nullString(sub.Form.Service),
		sub.Form.Message,
		nullString(sub.ClientKey),
		nullString(sub.UserAgent),
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store contact submission: %w", err)
	}
	return nil
}

// ListContactSubmissions returns submissions newest first.
func (s *Store) ListContactSubmissions(ctx context.Context, q ContactQuery) ([]contact.Submission, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		clauses []string
		args    []any
	)
	if !q.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, q.Since.UTC().UnixMilli())
	}
	if email := strings.TrimSpace(q.Email); email != "" {
		clauses = append(clauses, "email = ?")
		args = append(args, email)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, email, company, phone, service, message, client_key, user_agent, created_at
		FROM contact_submissions
		%s
		ORDER BY created_at DESC, id
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list contact submissions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	subs := []contact.Submission{}
	for rows.Next() {
		var (
			sub                                 contact.Submission
			company, phone, service, key, agent sql.NullString
			createdAt                           int64
		)
		if err := rows.Scan(
			&sub.ID,
			&sub.Form.Name,
			&sub.Form.Email,
			&company,
			&phone,
			&service,
			&sub.Form.Message,
			&key,
			&agent,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact submissions: %w", err)
		}
		sub.Form.Company = company.String
		sub.Form.Phone = phone.String
		sub.Form.Service = service.String
		sub.ClientKey = key.String
		sub.UserAgent = agent.String
		sub.CreatedAt = time.UnixMilli(createdAt).UTC()
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contact submissions: %w", err)
	}

	return subs, nil
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
