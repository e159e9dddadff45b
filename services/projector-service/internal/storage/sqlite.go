package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type sqliteBackend struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (or creates) an embedded projection database.
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; handlers run on a single goroutine anyway.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{db: &sqliteBackend{sqlDB: sqlDB}}, nil
}

func (b *sqliteBackend) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqliteExec(ctx, b.sqlDB, query, args...)
}

func (b *sqliteBackend) inTx(ctx context.Context, fn func(execer) error) error {
	tx, err := b.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(sqliteTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *sqliteBackend) ping(ctx context.Context) error {
	return b.sqlDB.PingContext(ctx)
}

func (b *sqliteBackend) close() error {
	return b.sqlDB.Close()
}

func (b *sqliteBackend) dialect() string { return "sqlite" }

type sqliteTx struct {
	tx *sql.Tx
}

func (t sqliteTx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqliteExec(ctx, t.tx, query, args...)
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteExec(ctx context.Context, q sqlExecer, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifySQLite(err)
	}
	return res.RowsAffected()
}

func classifySQLite(err error) error {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_MISMATCH, sqlite3lib.SQLITE_TOOBIG:
		return events.Permanent(err)
	}
	return err
}
