package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and DDL for SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agent_tasks (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL,
    goal        TEXT NOT NULL,
    action      TEXT NOT NULL,
    params      TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agent_tasks (
    seq         BIGSERIAL PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL,
    goal        TEXT NOT NULL,
    action      TEXT NOT NULL,
    params      TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SQLStore keeps pending tasks in a relational table. PeekOne returns tasks
// in insertion order.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database. Call Migrate before first use.
// Each call is bounded by QueryTimeout (DefaultQueryTimeout unless set).
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...StoreOption) *SQLStore {
	cfg := newStoreOptions(opts)
	return &SQLStore{db: db, dialect: dialect, timeout: cfg.queryTimeout}
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
// path may be a file name or a "file:...?mode=memory" URI.
func OpenSQLite(ctx context.Context, path string, opts ...StoreOption) (*SQLStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr("open sqlite", err)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY under the pool
	db.SetMaxOpenConns(1)
	s := NewSQLStore(db, DialectSQLite, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to Postgres through the pgx driver and migrates the schema.
// A DSN without connect_timeout gets one derived from the query timeout.
func OpenPostgres(ctx context.Context, dsn string, opts ...StoreOption) (*SQLStore, error) {
	cfg := newStoreOptions(opts)
	db, err := sql.Open("pgx", withConnectTimeout(dsn, cfg.queryTimeout))
	if err != nil {
		return nil, storeErr("open postgres", err)
	}
	db.SetMaxOpenConns(4)
	s := NewSQLStore(db, DialectPostgres, opts...)
	pctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, storeErr("ping postgres", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tasks table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ddl := sqliteSchema
	if s.dialect == DialectPostgres {
		ddl = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

// Add inserts a task. A conflicting id leaves the stored row untouched and
// returns ErrDuplicateTask.
func (s *SQLStore) Add(ctx context.Context, t Task) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	q := s.rebind(`INSERT INTO agent_tasks (id, description, goal, action, params)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, q, t.ID, t.Description, t.Goal, string(t.Action), t.Params)
	if err != nil {
		return storeErr("add", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("add", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, t.ID)
	}
	return nil
}

// PeekOne returns the oldest pending task, or nil if there is none.
func (s *SQLStore) PeekOne(ctx context.Context) (*Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT id, description, goal, action, params FROM agent_tasks ORDER BY seq LIMIT 1`)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("peek", err)
	}
	return t, nil
}

// Get returns the task with the given id.
func (s *SQLStore) Get(ctx context.Context, id string) (*Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, description, goal, action, params FROM agent_tasks WHERE id = ?`), id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return t, nil
}

// List returns all pending tasks in insertion order.
func (s *SQLStore) List(ctx context.Context) ([]*Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT id, description, goal, action, params FROM agent_tasks ORDER BY seq`)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, storeErr("list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return out, nil
}

// Delete removes a task by id. Unknown ids are ignored.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM agent_tasks WHERE id = ?`), id); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// withConnectTimeout appends connect_timeout (whole seconds, at least 1) to a
// URL or keyword/value Postgres DSN that does not set one.
func withConnectTimeout(dsn string, d time.Duration) string {
	if strings.Contains(dsn, "connect_timeout") {
		return dsn
	}
	secs := strconv.Itoa(max(1, int(d/time.Second)))
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "connect_timeout=" + secs
	}
	if strings.TrimSpace(dsn) == "" {
		return "connect_timeout=" + secs
	}
	return dsn + " connect_timeout=" + secs
}

// rebind rewrites '?' placeholders to '$n' for Postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func scanTask(scan func(dest ...any) error) (*Task, error) {
	var t Task
	var action string
	if err := scan(&t.ID, &t.Description, &t.Goal, &action, &t.Params); err != nil {
		return nil, err
	}
	t.Action = Action(action)
	return &t, nil
}
