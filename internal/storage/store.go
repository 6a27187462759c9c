package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meshtools/meshdb/internal/observability"
)

var (
	// ErrStorageUnavailable reports that the database file or its directory
	// cannot be created or opened.
	ErrStorageUnavailable = errors.New("storage: unavailable")

	// ErrMalformedInput reports input missing the fields required to route it.
	ErrMalformedInput = errors.New("storage: malformed input")
)

// Config holds the values needed to open a per-owner database.
type Config struct {
	// BasePath is a directory, a file pattern, or empty for the working
	// directory. The owner node number is interpolated into the final path.
	BasePath string
	// Owner is the node number of the device this database belongs to.
	Owner uint32
}

// DB is a handle to one owner's database. All reads and writes are scoped to
// the owner's rows.
type DB struct {
	owner uint32
	path  string
	db    *sql.DB

	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures the handle.
type Option func(*DB)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DB) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics attaches metrics instrumentation.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(d *DB) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *DB) {
		if now != nil {
			d.now = now
		}
	}
}

// Open resolves the owner's database path, opens the pool, applies pragmas
// and ensures the schema.
func Open(ctx context.Context, cfg Config, opts ...Option) (*DB, error) {
	path, err := DBPathFor(cfg.BasePath, cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure directory: %v", ErrStorageUnavailable, err)
	}

	pool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStorageUnavailable, err)
	}

	d := &DB{
		owner:  cfg.Owner,
		path:   path,
		db:     pool,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.configureConnection(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := d.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// Owner returns the owner node number the handle is scoped to.
func (d *DB) Owner() uint32 { return d.owner }

// Path returns the resolved database file path.
func (d *DB) Path() string { return d.path }

// Close releases the underlying pool.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	return nil
}

func (d *DB) configureConnection(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := d.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%w: apply pragma %q: %v", ErrStorageUnavailable, pragma, err)
		}
	}
	return nil
}

// hexID renders a node number in the canonical !-prefixed 8-digit hex form.
func hexID(nodeNum uint32) string {
	return fmt.Sprintf("!%08x", nodeNum)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return int64(1)
	}
	return int64(0)
}
