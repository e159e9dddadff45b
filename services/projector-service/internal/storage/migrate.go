package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// Migrate applies the embedded schema for the store's dialect. Each file runs
// at most once, inside the transaction that records it.
func (s *Store) Migrate(ctx context.Context) error {
	root := path.Join("migrations", s.db.dialect())
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.db.exec(ctx, "CREATE TABLE IF NOT EXISTS "+migrationTable+" (name TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		content, err := fs.ReadFile(migrationFS, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = s.db.inTx(ctx, func(tx execer) error {
			n, err := tx.exec(ctx, "INSERT INTO "+migrationTable+" (name) VALUES (?) ON CONFLICT (name) DO NOTHING", name)
			if err != nil || n == 0 {
				return err
			}
			_, err = tx.exec(ctx, string(content))
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
