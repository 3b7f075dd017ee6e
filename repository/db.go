// Package repository opens the bun database behind the auth repositories
// and keeps its schema up to date.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Driver names the database backend selected from a DSN.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Options tune the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Option customizes Open.
type Option func(*Options)

// WithMaxOpenConns caps the pool size. SQLite always uses a single connection.
func WithMaxOpenConns(n int) Option {
	return func(o *Options) {
		o.MaxOpenConns = n
	}
}

// WithConnMaxLifetime recycles connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *Options) {
		o.ConnMaxLifetime = d
	}
}

// DriverFor picks the backend from the DSN scheme.
func DriverFor(dsn string) (Driver, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return DriverSQLite, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database dsn %q", redact(dsn))
	}
}

// Open connects to the database named by dsn and checks it is reachable.
func Open(ctx context.Context, dsn string, opts ...Option) (*bun.DB, error) {
	driver, target, err := DriverFor(dsn)
	if err != nil {
		return nil, err
	}

	options := &Options{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	var db *bun.DB
	switch driver {
	case DriverPostgres:
		cfg, err := pgx.ParseConfig(target)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		sqldb := stdlib.OpenDB(*cfg)
		configurePool(sqldb, options)
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, target)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// a single connection keeps in-memory databases shared and avoids
		// SQLITE_BUSY between writers
		options.MaxOpenConns = 1
		options.MaxIdleConns = 1
		options.ConnMaxLifetime = 0
		configurePool(sqldb, options)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

func configurePool(db *sql.DB, o *Options) {
	if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		db.SetMaxIdleConns(o.MaxIdleConns)
	}
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
}

func redact(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if scheme := strings.Index(dsn, "://"); scheme > 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
