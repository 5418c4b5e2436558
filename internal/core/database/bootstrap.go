package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed scripts/*.sql
var migrationsFS embed.FS

const metaDDL = `CREATE TABLE IF NOT EXISTS analyzer_meta (
    version     INTEGER PRIMARY KEY,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// migration is one embedded script named NNN_description.sql.
type migration struct {
	version int
	name    string
}

// migrations lists the embedded scripts ordered by version.
func migrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("scripts")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	out := make([]migration, 0, len(entries))
	seen := make(map[int]string, len(entries))
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		v, err := strconv.Atoi(prefix)
		if !ok || err != nil || v <= 0 {
			return nil, fmt.Errorf("migration %q: name must start with a positive version", e.Name())
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %q and %q share version %d", prev, e.Name(), v)
		}
		seen[v] = e.Name()
		out = append(out, migration{version: v, name: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// pending returns the migrations newer than applied.
func pending(all []migration, applied int) []migration {
	i := sort.Search(len(all), func(i int) bool { return all[i].version > applied })
	return all[i:]
}

// EnsureBootstrapped brings the kv schema up to the newest embedded migration.
// Each script runs in its own transaction together with its version row.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctxBoot, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	all, err := migrations()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctxBoot, metaDDL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var applied int
	if err := db.QueryRowContext(ctxBoot, `SELECT COALESCE(MAX(version), 0) FROM analyzer_meta`).Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range pending(all, applied) {
		if err := apply(ctxBoot, db, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	script, err := migrationsFS.ReadFile(path.Join("scripts", m.name))
	if err != nil {
		return fmt.Errorf("read %s: %w", m.name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO analyzer_meta (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, m.version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record version %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.name, err)
	}
	return nil
}
