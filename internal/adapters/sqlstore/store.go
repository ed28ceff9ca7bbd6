// Package sqlstore implements the storage ports on database/sql for SQLite
// and MySQL. Identifiers are generated client side and timestamps are stored
// as unix microseconds so both engines share one set of queries.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"antygravity/internal/ports"
)

//go:embed migrations
var migrations embed.FS

// Dialect selects the SQL engine.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ports.Store = (*Store)(nil)

// Open connects to dsn. For SQLite an empty dsn opens a private in-memory
// database.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case SQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w", dsn, err)
		}
		// One connection avoids "database is locked" and keeps :memory: shared.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, err
		}
	case MySQL:
		// dsn should be user:password@tcp(host:port)/dbname
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid MySQL DSN: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}
		cfg.Loc = time.UTC
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		db = sql.OpenDB(connector)
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: dialect, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Provider returns a goose migration provider for the store's dialect.
func (s *Store) Provider() (*goose.Provider, error) {
	dir, gd := "migrations/sqlite3", goose.DialectSQLite3
	if s.dialect == MySQL {
		dir, gd = "migrations/mysql", goose.DialectMySQL
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(gd, s.db, fsys)
}

func (s *Store) Migrate(ctx context.Context) error {
	p, err := s.Provider()
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds. While fn
// runs, all statements must go through tx: SQLite has a single connection.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

// forUpdate is the row locking suffix for the dialect.
func (s *Store) forUpdate(skipLocked bool) string {
	if s.dialect != MySQL {
		return ""
	}
	if skipLocked {
		return " FOR UPDATE SKIP LOCKED"
	}
	return " FOR UPDATE"
}

func (s *Store) stamp() int64 { return s.now().UnixMicro() }

func micros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}
