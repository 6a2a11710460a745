package edge

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoutesFile holds redirects and protected prefixes layered on top of the
// built-in tables. Built-in entries cannot be overridden.
type RoutesFile struct {
	Redirects         []Entry  `yaml:"redirects"`
	ProtectedPrefixes []string `yaml:"protected_prefixes"`
}

// LoadRoutesFile reads a YAML routes file. Unknown keys are rejected.
func LoadRoutesFile(path string) (*RoutesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return ParseRoutes(data)
}

// ParseRoutes decodes routes YAML.
func ParseRoutes(data []byte) (*RoutesFile, error) {
	var rf RoutesFile
	if len(bytes.TrimSpace(data)) == 0 {
		return &rf, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}
	return &rf, nil
}

// Apply merges the file into opts. A redirect that changes a built-in source
// or appears twice is an error.
func (rf *RoutesFile) Apply(opts *Options) error {
	if rf == nil || opts == nil {
		return nil
	}

	merged := make(map[string]string, len(opts.Redirects)+len(rf.Redirects))
	if opts.Redirects == nil {
		opts.Redirects = DefaultRedirects()
	}
	for from, to := range opts.Redirects {
		merged[from] = to
	}

	seen := make(map[string]struct{}, len(rf.Redirects))
	for _, entry := range rf.Redirects {
		if _, dup := seen[entry.From]; dup {
			return fmt.Errorf("redirect %q listed more than once", entry.From)
		}
		seen[entry.From] = struct{}{}

		if existing, ok := merged[entry.From]; ok {
			if existing == entry.To {
				continue
			}
			return fmt.Errorf("redirect %q conflicts with built-in destination %q", entry.From, existing)
		}
		merged[entry.From] = entry.To
	}
	opts.Redirects = merged

	if opts.ProtectedPrefixes == nil {
		opts.ProtectedPrefixes = DefaultProtectedPrefixes()
	}
	opts.ProtectedPrefixes = append(append([]string(nil), opts.ProtectedPrefixes...), rf.ProtectedPrefixes...)

	return nil
}
