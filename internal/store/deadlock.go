package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// deadlockSQLState is Postgres's SQLSTATE for "deadlock_detected".
const deadlockSQLState = "40P01"

// IsDeadlock reports whether err represents a Postgres deadlock, so the
// flusher can distinguish a retryable contention error from a hard failure.
// Falls back to a substring match when err isn't a *pgconn.PgError (e.g. it
// arrives wrapped from a driver this lineage doesn't pin down further).
func IsDeadlock(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == deadlockSQLState
	}
	return strings.Contains(strings.ToLower(err.Error()), "deadlock")
}
