package edge

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultRedirects maps legacy service paths to their canonical pages.
func DefaultRedirects() map[string]string {
	return map[string]string{
		"/services/web": "/services/web-development",
		"/services/crm": "/services/crm-integration",
	}
}

// DefaultProtectedPrefixes lists the paths that require a session cookie.
func DefaultProtectedPrefixes() []string {
	return []string{"/admin", "/dashboard"}
}

// RedirectTable is an immutable exact-match path mapping.
type RedirectTable struct {
	entries map[string]string
}

// NewRedirectTable copies entries into a table. Sources must be absolute
// paths and destinations non-empty.
func NewRedirectTable(entries map[string]string) (RedirectTable, error) {
	table := RedirectTable{entries: make(map[string]string, len(entries))}
	for from, to := range entries {
		from = strings.TrimSpace(from)
		to = strings.TrimSpace(to)
		if !strings.HasPrefix(from, "/") {
			return RedirectTable{}, fmt.Errorf("redirect source %q must start with /", from)
		}
		if to == "" {
			return RedirectTable{}, fmt.Errorf("redirect %q has no destination", from)
		}
		table.entries[from] = to
	}
	return table, nil
}

// Lookup returns the destination for an exact path match.
func (t RedirectTable) Lookup(path string) (string, bool) {
	dest, ok := t.entries[path]
	return dest, ok
}

// Len returns the number of entries.
func (t RedirectTable) Len() int {
	return len(t.entries)
}

// Entry is a single redirect, used for listings.
type Entry struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Entries returns the table sorted by source path.
func (t RedirectTable) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for from, to := range t.entries {
		out = append(out, Entry{From: from, To: to})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// PrefixSet is an ordered, duplicate-free list of path prefixes.
type PrefixSet struct {
	prefixes []string
}

// NewPrefixSet keeps the first occurrence of every non-empty prefix.
func NewPrefixSet(prefixes []string) (PrefixSet, error) {
	seen := make(map[string]struct{}, len(prefixes))
	out := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(prefix, "/") {
			return PrefixSet{}, fmt.Errorf("protected prefix %q must start with /", prefix)
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		out = append(out, prefix)
	}
	return PrefixSet{prefixes: out}, nil
}

// Match reports whether path starts with any prefix in the set.
func (s PrefixSet) Match(path string) bool {
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// List returns a copy of the prefixes in order.
func (s PrefixSet) List() []string {
	return append([]string(nil), s.prefixes...)
}
