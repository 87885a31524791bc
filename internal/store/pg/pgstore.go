// Package pg implements the workflow persistence contract on Postgres.
// Queries go through database/sql with the pgx stdlib driver so tests can
// swap in a mocked connection.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MediaMash/buildly-core/internal/workflow"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var _ workflow.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool. Used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Organizations(ctx context.Context) workflow.OrganizationStore {
	return &orgStore{db: s.db}
}

func (s *Store) Users(ctx context.Context) workflow.UserStore {
	return &userStore{db: s.db}
}

func (s *Store) Groups(ctx context.Context) workflow.GroupStore {
	return &groupStore{db: s.db}
}

func (s *Store) Level1s(ctx context.Context) workflow.Level1Store {
	return &level1Store{db: s.db}
}

func (s *Store) Level2s(ctx context.Context) workflow.Level2Store {
	return &level2Store{db: s.db}
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapWriteError translates driver errors into the workflow error taxonomy.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return workflow.ErrConflict
		case pgErrForeignKeyViolation:
			return workflow.ErrNotFound
		}
	}
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
