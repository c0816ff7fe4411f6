// Package store persists extraction jobs and their recovered records.
// It speaks plain database/sql so the same code serves Postgres (pgx) in a
// deployment and in-memory SQLite for local batch runs and tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dangbaokhoa/identity-card/internal/common"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database behind dsn. A postgres:// DSN selects the
// pgx driver; anything else is treated as a SQLite path, with an empty dsn
// meaning a shared in-memory database.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, common.WrapError(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "ping database")
	}

	logger.Info("connected to database", "driver", driver)
	return &Store{db: db, logger: logger}, nil
}

// dbErr tags a database failure so callers can match common.ErrDatabase.
func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrDatabase, err)
}

func (s *Store) Close() error {
	s.logger.Info("closing database")
	return s.db.Close()
}

// Migrate creates the schema when missing. Column types stay on the lowest
// common denominator of SQLite and Postgres.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extract_jobs (
			id          TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			mode        TEXT NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			job_id          TEXT PRIMARY KEY,
			fullname        TEXT NOT NULL DEFAULT '',
			date_of_birth   TEXT NOT NULL DEFAULT '',
			sex             TEXT NOT NULL DEFAULT '',
			nationality     TEXT NOT NULL DEFAULT '',
			place_of_origin TEXT NOT NULL DEFAULT '',
			no              TEXT NOT NULL DEFAULT '',
			residence       TEXT NOT NULL DEFAULT '',
			expiry_date     TEXT NOT NULL DEFAULT '',
			old_id          TEXT NOT NULL DEFAULT '',
			issue_date      TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return dbErr("migrate", err)
		}
	}
	return nil
}
