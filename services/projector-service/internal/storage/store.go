package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a partial update or delete matched no row.
var ErrNotFound = errors.New("projection row not found")

// Audit identifies the event that last wrote a row.
type Audit struct {
	EventID        string
	EventTimestamp time.Time
}

type execer interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
}

type backend interface {
	execer
	inTx(ctx context.Context, fn func(execer) error) error
	ping(ctx context.Context) error
	close() error
	dialect() string
}

// Store writes projection rows. The same statements run on Postgres and
// SQLite; both accept ON CONFLICT ... DO UPDATE with excluded.
type Store struct {
	db backend
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.ping(ctx)
}

func (s *Store) Close() error {
	return s.db.close()
}

// Dialect is "postgres" or "sqlite".
func (s *Store) Dialect() string {
	return s.db.dialect()
}

// table describes an upsertable projection table.
type table struct {
	name string
	key  []string
	cols []string
	// immutable columns keep their first written value on conflict.
	immutable []string
}

func (t table) upsertSQL() string {
	skip := map[string]bool{}
	for _, k := range t.key {
		skip[k] = true
	}
	for _, c := range t.immutable {
		skip[c] = true
	}
	sets := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		if !skip[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		t.name,
		strings.Join(t.cols, ", "),
		placeholders(len(t.cols)),
		strings.Join(t.key, ", "),
		strings.Join(sets, ", "),
	)
}

func (t table) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.cols, ", "), placeholders(len(t.cols)))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
