// Package sqlite implements the storage port on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/roadmap/internal/storage"
)

// DefaultPrefix namespaces minted IDs when the config leaves it unset.
const DefaultPrefix = "rm"

// Store is the SQLite-backed storage implementation. Safe for
// concurrent use; writers serialize through SQLite's own locking with
// immediate transactions.
type Store struct {
	db         *sql.DB
	path       string
	roadmapDir string
	prefix     string
}

var _ storage.Store = (*Store)(nil)

// connString builds the driver DSN: WAL journaling, enforced foreign
// keys, a generous busy timeout, and immediate write transactions so
// competing writers queue instead of deadlocking.
func connString(path string) string {
	return fmt.Sprintf("file:%s"+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=foreign_keys(ON)"+
		"&_pragma=busy_timeout(10000)"+
		"&_pragma=synchronous(NORMAL)"+
		"&_time_format=sqlite"+
		"&_txlock=immediate", path)
}

// New opens (creating if needed) the database at cfg.Path and applies
// the schema.
func New(ctx context.Context, cfg storage.Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage config has no database path")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	db, err := sql.Open("sqlite3", connString(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database %s: %w", cfg.Path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{
		db:         db,
		path:       cfg.Path,
		roadmapDir: cfg.RoadmapDir,
		prefix:     prefix,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// UnderlyingDB returns the pooled connection.
func (s *Store) UnderlyingDB() *sql.DB { return s.db }

// Conn returns a single connection from the pool for scoped per-worker
// use. The caller must close it.
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return conn, nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuuming database: %w", err)
	}
	return nil
}

// querier is the shared query surface of *sql.DB and *sql.Tx, so the
// same statement helpers serve both direct calls and transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx implements storage.Transaction over one *sql.Tx.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

var _ storage.Transaction = (*Tx)(nil)

// RunInTransaction executes fn atomically: commit on nil return,
// rollback on error or panic (the panic is re-raised).
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	done = true
	return nil
}

// isUniqueConstraintError reports whether err is a UNIQUE or PRIMARY
// KEY constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

// nextSequence increments the named counter in sync_state and returns
// the new value. Runs on the caller's querier so minting joins the
// surrounding transaction.
func nextSequence(ctx context.Context, q querier, key string) (int64, error) {
	var raw string
	n := int64(0)
	err := q.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// first mint
	case err != nil:
		return 0, fmt.Errorf("reading sequence %s: %w", key, err)
	default:
		n, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("sequence %s holds %q: %w", key, raw, err)
		}
	}
	n++
	_, err = q.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`,
		key, strconv.FormatInt(n, 10))
	if err != nil {
		return 0, fmt.Errorf("writing sequence %s: %w", key, err)
	}
	return n, nil
}

// mintID returns the next free ID for kind. Managed files may carry
// hand-assigned IDs the counter never saw, so taken values are skipped
// (each skip still advances the counter, keeping later mints cheap).
func (s *Store) mintID(ctx context.Context, q querier, kind string) (string, error) {
	var seq, table, format string
	switch kind {
	case "issue":
		seq, table, format = "seq_issue", "issues", "%s-%d"
	case "milestone":
		seq, table, format = "seq_milestone", "milestones", "%s-m%d"
	case "project":
		seq, table, format = "seq_project", "projects", "%s-p%d"
	default:
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}

	for {
		n, err := nextSequence(ctx, q, seq)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf(format, s.prefix, n)
		var one int
		err = q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("probing minted id %s: %w", id, err)
		}
	}
}
