package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so that read helpers
// can run inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func uint64Args(ids []uint64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// nowUTC is the timestamp used for rows written outside the booking
// service, truncated to whole seconds to match DATETIME precision.
func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }
