package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so every repository can run inside a
// transaction by constructing it over the tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// LockTeacherSchedule serialises schedule writes for one teacher until the surrounding
// transaction ends.
func LockTeacherSchedule(ctx context.Context, db DBTX, teacherID int64) error {
	_, err := db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", teacherID)
	return err
}

// ErrNotFound is pgx.ErrNoRows so callers can match either.
var ErrNotFound = pgx.ErrNoRows
