package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrations returns the embedded goose migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies every pending migration and returns the versions applied.
func Migrate(ctx context.Context, db *bun.DB) ([]int64, error) {
	gooseDialect, err := gooseDialectFor(db.Dialect().Name())
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, Migrations())
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}

	applied := make([]int64, 0, len(results))
	for _, res := range results {
		if res.Source != nil {
			applied = append(applied, res.Source.Version)
		}
	}
	return applied, nil
}

func gooseDialectFor(name dialect.Name) (goose.Dialect, error) {
	switch name {
	case dialect.PG:
		return goose.DialectPostgres, nil
	case dialect.SQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("no migration dialect for %s", name)
	}
}
