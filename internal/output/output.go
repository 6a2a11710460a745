package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// section is one titled grid of cells, rendered as a table or markdown.
type section struct {
	title  string
	header []string
	rows   [][]string
	footer string
	empty  string
}

func renderJSON(payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func renderSections(format Format, sections ...section) string {
	rendered := make([]string, 0, len(sections))
	for _, s := range sections {
		if format == FormatMarkdown {
			rendered = append(rendered, s.markdown())
		} else {
			rendered = append(rendered, s.table())
		}
	}
	return strings.Join(rendered, "\n\n")
}

func (s section) table() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if s.title != "" {
		t.SetTitle(s.title)
	}

	header := make(table.Row, 0, len(s.header))
	for _, h := range s.header {
		header = append(header, h)
	}
	t.AppendHeader(header)

	if len(s.rows) == 0 && s.empty != "" {
		row := make(table.Row, len(s.header))
		row[0] = s.empty
		for i := 1; i < len(row); i++ {
			row[i] = ""
		}
		t.AppendRow(row)
	}
	for _, cells := range s.rows {
		row := make(table.Row, 0, len(cells))
		for _, c := range cells {
			row = append(row, c)
		}
		t.AppendRow(row)
	}

	if s.footer != "" {
		footer := make(table.Row, len(s.header))
		for i := range footer {
			footer[i] = ""
		}
		footer[len(footer)-1] = s.footer
		t.AppendFooter(footer)
	}
	return t.Render()
}

func (s section) markdown() string {
	var sb strings.Builder
	if s.title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(s.title)))
	}
	if len(s.rows) == 0 && s.empty != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n", s.empty))
		return sb.String()
	}

	sb.WriteString("|")
	for _, h := range s.header {
		sb.WriteString(" " + escapeMarkdownCell(h) + " |")
	}
	sb.WriteString("\n|")
	for _, h := range s.header {
		sb.WriteString(strings.Repeat("-", len(h)+2) + "|")
	}
	sb.WriteString("\n")
	for _, cells := range s.rows {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" " + escapeMarkdownCell(c) + " |")
		}
		sb.WriteString("\n")
	}
	if s.footer != "" {
		sb.WriteString(fmt.Sprintf("\n**%s**\n", escapeMarkdownCell(s.footer)))
	}
	return sb.String()
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
