// Package mysql implements the domain repositories on MySQL through
// database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-sql-driver/mysql"

	"github.com/xenking/foodcart/db"
)

// MySQL error numbers mapped to domain errors.
const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1452
	errNoReferencedRow2 = 1216
)

const defaultMaxOpenConns = 25

// Option tweaks the connection pool returned by Open.
type Option func(sqlDB *sql.DB)

// WithMaxOpenConns caps the number of open connections. Non-positive values
// keep the default.
func WithMaxOpenConns(n int) Option {
	return func(sqlDB *sql.DB) {
		if n > 0 {
			sqlDB.SetMaxOpenConns(n)
			sqlDB.SetMaxIdleConns(min(n, 5))
		}
	}
}

// Open parses dsn, forces UTC time parsing and verifies connectivity.
func Open(ctx context.Context, dsn string, opts ...Option) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating mysql connector: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	for _, opt := range opts {
		opt(sqlDB)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return sqlDB, nil
}

// RunMigrations executes the embedded MySQL schema statement by statement.
func RunMigrations(ctx context.Context, sqlDB *sql.DB) error {
	for _, stmt := range strings.Split(db.MySQLSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return nil
}

func mysqlErrorNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

func isDuplicate(err error) bool {
	return mysqlErrorNumber(err) == errDuplicateEntry
}

func isMissingReference(err error) bool {
	n := mysqlErrorNumber(err)
	return n == errNoReferencedRow || n == errNoReferencedRow2
}

// inTx runs fn in a transaction, rolling back on error.
func inTx(ctx context.Context, sqlDB *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
