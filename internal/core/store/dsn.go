package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/namelens/edgegate/internal/config"
)

const memoryPath = ":memory:"

// location is a resolved connection string.
type location struct {
	dsn   string
	local bool
}

// resolveLocation turns store config into a libsql DSN. A URL wins over a
// path; plain paths become file: DSNs and get their parent directory
// created.
func resolveLocation(cfg config.StoreConfig) (location, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		return location{dsn: dsn}, err
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return location{}, errors.New("store path or url is required")
	case path == memoryPath:
		return location{dsn: path}, nil
	case strings.HasPrefix(path, "libsql:"):
		return location{dsn: path}, nil
	case strings.HasPrefix(path, "file:"):
		local, err := filePathOf(path)
		if err != nil {
			return location{}, err
		}
		if err := mkdirParent(local); err != nil {
			return location{}, err
		}
		return location{dsn: path, local: true}, nil
	default:
		if err := mkdirParent(path); err != nil {
			return location{}, err
		}
		return location{dsn: "file:" + filepath.Clean(path), local: true}, nil
	}
}

// withAuthToken adds authToken to a remote DSN unless it already has one.
func withAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	q := parsed.Query()
	if q.Get("authToken") != "" {
		return dsn, nil
	}
	q.Set("authToken", token)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func filePathOf(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	p := parsed.Path
	if p == "" {
		p = parsed.Opaque
	}
	return strings.TrimPrefix(p, "//"), nil
}

func mkdirParent(path string) error {
	if path == "" || path == memoryPath {
		return nil
	}
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- shared data directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
