package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/countdown/go/internal/dbconfig"
	"github.com/mcdev12/countdown/go/internal/timergroup"
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func main() {
	ctx := context.Background()

	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply pending migrations in order
	applied, skipped, err := migrate(ctx, pool, timergroup.Migrations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %d applied, %d already present\n", applied, skipped)
}

func migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS) (int, int, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrations, "schema/*.sql")
	if err != nil {
		return 0, 0, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	var applied, skipped int
	for _, name := range names {
		ok, err := applyOne(ctx, pool, migrations, name)
		if err != nil {
			return applied, skipped, fmt.Errorf("%s: %w", name, err)
		}
		if ok {
			fmt.Printf("applied %s\n", name)
			applied++
		} else {
			skipped++
		}
	}
	return applied, skipped, nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, name string) (bool, error) {
	body, err := fs.ReadFile(migrations, name)
	if err != nil {
		return false, fmt.Errorf("read: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return false, fmt.Errorf("record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, string(body), pgx.QueryExecModeSimpleProtocol); err != nil {
		return false, fmt.Errorf("exec: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
