package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/edgegate/internal/output"
)

// outputFlags are the destination flags shared by listing commands.
type outputFlags struct {
	format string
	out    string
	outDir string
}

func (f *outputFlags) bind(cmd *cobra.Command, formats string) {
	cmd.Flags().StringVar(&f.format, "output-format", string(output.FormatTable), "Output format: "+formats)
	cmd.Flags().StringVar(&f.out, "out", "", "Write output to a file (default stdout)")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Write output to a directory")
}

// target validates the flags before any store access.
func (f *outputFlags) target() (outputTarget, error) {
	t := outputTarget{path: strings.TrimSpace(f.out), dir: strings.TrimSpace(f.outDir)}
	if t.path != "" && t.dir != "" {
		return outputTarget{}, errors.New("--out and --out-dir are mutually exclusive")
	}
	return t, nil
}

// outputTarget is stdout, a file, or a generated file name in a directory.
type outputTarget struct {
	path string
	dir  string
}

type outputSink struct {
	io.Writer
	close func() error
	path  string
}

func (s *outputSink) Close() error { return s.close() }

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// open creates the destination. With a directory the file is named
// "<name>.<ext>" after the output format.
func (t outputTarget) open(name string, format output.Format) (*outputSink, error) {
	path := t.path
	if t.dir != "" {
		path = filepath.Join(t.dir, name+"."+outputExtension(format))
	}
	if path == "" || path == "-" {
		return &outputSink{Writer: os.Stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &outputSink{Writer: file, close: file.Close, path: path}, nil
}

// writeRendered writes one rendered document to the target.
func (t outputTarget) writeRendered(name string, format output.Format, rendered string) error {
	sink, err := t.open(name, format)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(sink, rendered); err != nil {
		_ = sink.Close()
		return err
	}
	return sink.Close()
}
