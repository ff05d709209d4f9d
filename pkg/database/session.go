package database

import (
	"context"
	"database/sql"
)

// Session is the minimal query surface shared by a connection pool and a single
// pinned connection. The merge engine and the branch repositories are written
// against Session so the same code runs against either, and so tests can
// substitute a fake.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}
