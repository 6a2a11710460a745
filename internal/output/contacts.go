package output

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/namelens/edgegate/internal/core/contact"
)

const messagePreview = 40

// FormatContacts renders stored contact submissions, newest first as given.
func FormatContacts(format Format, subs []contact.Submission) (string, error) {
	if format == FormatJSON {
		return renderJSON(subs)
	}

	s := section{
		title:  "Contact submissions",
		header: []string{"Received", "Name", "Email", "Service", "Message"},
		empty:  "(no submissions)",
	}
	for _, sub := range subs {
		s.rows = append(s.rows, []string{
			sub.CreatedAt.UTC().Format(time.RFC3339),
			sub.Form.Name,
			sub.Form.Email,
			sub.Form.Service,
			preview(sub.Form.Message, messagePreview),
		})
	}
	if len(subs) > 0 {
		s.footer = fmt.Sprintf("%d shown", len(subs))
	}
	return renderSections(format, s), nil
}

func preview(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max-1]) + "…"
}
