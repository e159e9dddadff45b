package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/shopsync/libs/db"
	"github.com/md-rashed-zaman/shopsync/libs/events"
)

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgBackend struct {
	pool *db.Pool
}

// NewPostgres wraps an open pool. Call Migrate before the first write.
func NewPostgres(pool *db.Pool) *Store {
	return &Store{db: &pgBackend{pool: pool}}
}

func (b *pgBackend) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return pgExec(ctx, b.pool, query, args...)
}

func (b *pgBackend) inTx(ctx context.Context, fn func(execer) error) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

func (b *pgBackend) ping(ctx context.Context) error {
	return db.ReadyCheck(b.pool)(ctx)
}

func (b *pgBackend) close() error {
	b.pool.Close()
	return nil
}

func (b *pgBackend) dialect() string { return "postgres" }

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return pgExec(ctx, t.tx, query, args...)
}

func pgExec(ctx context.Context, q pgExecer, query string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, classifyPg(err)
	}
	return tag.RowsAffected(), nil
}

// rebind turns ? placeholders into $1, $2, ...
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// classifyPg marks data and integrity violations as permanent; replaying the
// same event cannot fix them.
func classifyPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return events.Permanent(err)
	}
	return err
}
