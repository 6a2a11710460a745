package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/namelens/edgegate/internal/config"
)

const driverLibsql = "libsql"

// Store holds shared rate limit windows and contact submissions in a libsql
// database, either a local file or a remote Turso instance.
type Store struct {
	DB     *sql.DB
	driver string
	local  bool

	// rlMu serialises rate limit read-modify-write within this process.
	rlMu sync.Mutex
}

// Open connects and pings the database. Local files are tuned for a single
// writer; call Migrate before first use.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	loc, err := resolveLocation(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, loc.dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	s := &Store{DB: db, driver: driver, local: loc.local}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	if loc.local {
		if err := tuneLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Local reports whether the store is a file on this host.
func (s *Store) Local() bool {
	return s != nil && s.local
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	return s.DB.PingContext(ctx)
}

var errNotInitialized = errors.New("store is not initialized")

// tuneLocal enables WAL and a busy timeout, and limits the pool to one
// connection so writes never contend inside the process.
func tuneLocal(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, name string }{
		{"PRAGMA journal_mode=WAL", "enable wal"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		// Both pragmas return a row; Exec would leave it unread.
		var ignored any
		if err := db.QueryRowContext(ctx, p.stmt).Scan(&ignored); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return nil
}
