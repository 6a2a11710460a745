package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/edgegate/internal/core/contact"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/core/store"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func defaultRouteSet(t *testing.T) RouteSet {
	t.Helper()
	rt, err := edge.New(edge.DefaultOptions())
	require.NoError(t, err)
	return NewRouteSet(rt)
}

func TestFormatRoutesJSON(t *testing.T) {
	rendered, err := FormatRoutes(FormatJSON, defaultRouteSet(t))
	require.NoError(t, err)

	var decoded RouteSet
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	assert.Equal(t, []edge.Entry{
		{From: "/services/crm", To: "/services/crm-integration"},
		{From: "/services/web", To: "/services/web-development"},
	}, decoded.Redirects)
	assert.Equal(t, []string{"/admin", "/dashboard"}, decoded.ProtectedPrefixes)
	assert.Equal(t, RateLimitInfo{Method: "POST", Path: "/api/contact", Limit: 10, Window: "1h0m0s"}, decoded.RateLimit)
}

func TestFormatRoutesTableAndMarkdown(t *testing.T) {
	routes := defaultRouteSet(t)

	table, err := FormatRoutes(FormatTable, routes)
	require.NoError(t, err)
	assert.Contains(t, table, "/services/web-development")
	assert.Contains(t, table, "/dashboard")
	assert.Contains(t, table, "count > limit")

	md, err := FormatRoutes(FormatMarkdown, routes)
	require.NoError(t, err)
	assert.Contains(t, md, "## Redirects (308)")
	assert.Contains(t, md, "| /services/crm | /services/crm-integration |")
}

func TestNewRateLimitRowsClassifiesWindows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := ratelimit.DefaultPolicy
	entries := []store.RateLimitEntry{
		{ClientKey: "1.1.1.1", Record: ratelimit.Record{Count: 3, WindowStart: now.Add(-10 * time.Minute)}},
		{ClientKey: "2.2.2.2", Record: ratelimit.Record{Count: 11, WindowStart: now.Add(-10 * time.Minute)}},
		{ClientKey: "3.3.3.3", Record: ratelimit.Record{Count: 11, WindowStart: now.Add(-2 * time.Hour)}},
	}

	rows := NewRateLimitRows(entries, policy, now)
	require.Len(t, rows, 3)
	assert.Equal(t, StateOpen, rows[0].State)
	assert.Equal(t, StateBlocked, rows[1].State)
	assert.Equal(t, StateExpired, rows[2].State)
	assert.Equal(t, now.Add(50*time.Minute), rows[0].ResetAt)

	// Classification never touches the entries themselves.
	assert.Equal(t, 3, entries[0].Record.Count)

	rendered, err := FormatRateLimits(FormatTable, rows)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(rendered), "1/3 blocked")
}

func TestFormatRateLimitsEmpty(t *testing.T) {
	rendered, err := FormatRateLimits(FormatTable, nil)
	require.NoError(t, err)
	assert.Contains(t, rendered, "(no stored rate limit state)")

	rendered, err = FormatRateLimits(FormatJSON, []RateLimitRow{})
	require.NoError(t, err)
	assert.Equal(t, "[]", rendered)
}

func TestFormatContacts(t *testing.T) {
	subs := []contact.Submission{{
		ID:        "abc",
		Form:      contact.Form{Name: "Ada | Lovelace", Email: "ada@example.com", Message: strings.Repeat("x", 100)},
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}}

	md, err := FormatContacts(FormatMarkdown, subs)
	require.NoError(t, err)
	assert.Contains(t, md, `Ada \| Lovelace`)
	assert.Contains(t, md, "2025-06-01T09:00:00Z")
	assert.NotContains(t, md, strings.Repeat("x", 100))

	rendered, err := FormatContacts(FormatJSON, subs)
	require.NoError(t, err)
	assert.Contains(t, rendered, `"id": "abc"`)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abcd…", preview("abcdefgh", 5))
	assert.Equal(t, "héllo", preview("héllo", 5))
}
