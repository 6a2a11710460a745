// Package contact validates and records contact/demo form submissions.
package contact

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength bounds the free-text message in characters.
const MaxMessageLength = 5000

// Form is the client-supplied part of a submission.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
	Message string `json:"message"`
}

// Submission is a validated form with server-assigned metadata.
type Submission struct {
	ID        string    `json:"id"`
	Form      Form      `json:"form"`
	ClientKey string    `json:"client_key,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationError reports the first invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Normalize trims every field.
func (f Form) Normalize() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Company: strings.TrimSpace(f.Company),
		Phone:   strings.TrimSpace(f.Phone),
		Service: strings.TrimSpace(f.Service),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate checks required fields on a normalized form.
func (f Form) Validate() error {
	if f.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if f.Email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(f.Email)
	if err != nil || addr.Address != f.Email {
		return &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	if f.Message == "" {
		return &ValidationError{Field: "message", Reason: "is required"}
	}
	if utf8.RuneCountInString(f.Message) > MaxMessageLength {
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("must be at most %d characters", MaxMessageLength)}
	}
	return nil
}

// NewSubmission normalizes and validates f and assigns an ID.
func NewSubmission(f Form, now time.Time) (Submission, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return Submission{}, err
	}
	return Submission{
		ID:        uuid.NewString(),
		Form:      f,
		CreatedAt: now.UTC(),
	}, nil
}

// Sink receives accepted submissions.
type Sink interface {
	Save(ctx context.Context, sub Submission) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sub Submission) error

// Save calls f.
func (f SinkFunc) Save(ctx context.Context, sub Submission) error {
	return f(ctx, sub)
}
