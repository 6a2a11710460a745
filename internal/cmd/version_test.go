package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionReportBasic(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")

	var buf bytes.Buffer
	require.NoError(t, buildVersionReport("edgegate", false).write(&buf, false))
	assert.Equal(t, "edgegate 1.2.3\n", buf.String())
}

func TestVersionReportExtended(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")

	var buf bytes.Buffer
	require.NoError(t, buildVersionReport("edgegate", true).write(&buf, false))
	assert.Contains(t, buf.String(), "Commit: abc123")
	assert.Contains(t, buf.String(), "Gofulmen: ")
}

func TestVersionReportJSON(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")

	var buf bytes.Buffer
	require.NoError(t, buildVersionReport("edgegate", true).write(&buf, true))

	var got versionReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "edgegate", got.Binary)
	assert.Equal(t, "2026-10-01", got.BuildDate)
	assert.NotEmpty(t, got.Go)
}
