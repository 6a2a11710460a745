package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/edgegate/internal/output"
)

func TestOutputFlagsRejectBothTargets(t *testing.T) {
	flags := outputFlags{out: "a.json", outDir: "reports"}
	_, err := flags.target()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestOutputFlagsBind(t *testing.T) {
	var flags outputFlags
	cmd := &cobra.Command{Use: "list"}
	flags.bind(cmd, "table|json")

	require.NoError(t, cmd.Flags().Parse([]string{"--output-format", "json", "--out-dir", " reports "}))
	assert.Equal(t, "json", flags.format)

	target, err := flags.target()
	require.NoError(t, err)
	assert.Equal(t, "reports", target.dir)
}

func TestOutputTargetWritesIntoDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	target := outputTarget{dir: dir}

	require.NoError(t, target.writeRendered("contacts.list", output.FormatJSON, `[]`))

	data, err := os.ReadFile(filepath.Join(dir, "contacts.list.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestOutputTargetStdout(t *testing.T) {
	sink, err := outputTarget{path: "-"}.open("ignored", output.FormatTable)
	require.NoError(t, err)
	assert.Equal(t, "-", sink.path)
	assert.NoError(t, sink.Close())
}

func TestOutputExtension(t *testing.T) {
	assert.Equal(t, "json", outputExtension(output.FormatJSON))
	assert.Equal(t, "md", outputExtension(output.FormatMarkdown))
	assert.Equal(t, "txt", outputExtension(output.FormatTable))
}
