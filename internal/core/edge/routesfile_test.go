package edge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRoutesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	content := `redirects:
  - from: /old-pricing
    to: /pricing
  - from: /services/web
    to: /services/web-development
protected_prefixes:
  - /portal
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rf, err := LoadRoutesFile(path)
	require.NoError(t, err)
	require.Len(t, rf.Redirects, 2)

	opts := DefaultOptions()
	require.NoError(t, rf.Apply(&opts))

	rt, err := New(opts)
	require.NoError(t, err)
	assert.Equal(t, 3, rt.Redirects().Len())
	assert.Equal(t, []string{"/admin", "/dashboard", "/portal"}, rt.ProtectedPrefixes().List())

	outcome := rt.Evaluate(context.Background(), get("/old-pricing"))
	assert.Equal(t, "/pricing", outcome.Location)

	outcome = rt.Evaluate(context.Background(), get("/portal/home"))
	assert.Equal(t, RuleAuth, outcome.Rule)
}

func TestRoutesFileCannotOverrideBuiltins(t *testing.T) {
	rf, err := ParseRoutes([]byte("redirects:\n  - from: /services/crm\n    to: /crm\n"))
	require.NoError(t, err)

	opts := DefaultOptions()
	err = rf.Apply(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/services/crm")
}

func TestRoutesFileRejectsDuplicates(t *testing.T) {
	rf, err := ParseRoutes([]byte("redirects:\n  - from: /a\n    to: /b\n  - from: /a\n    to: /c\n"))
	require.NoError(t, err)

	opts := DefaultOptions()
	assert.Error(t, rf.Apply(&opts))
}

func TestParseRoutesRejectsUnknownKeys(t *testing.T) {
	_, err := ParseRoutes([]byte("rewrites:\n  - /a\n"))
	assert.Error(t, err)
}

func TestParseRoutesEmpty(t *testing.T) {
	rf, err := ParseRoutes([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rf.Redirects)
}

func TestLoadRoutesFileMissing(t *testing.T) {
	_, err := LoadRoutesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
