package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the ledger reacts to
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation
func isDuplicateKeyError(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

// isForeignKeyError checks if the error is a PostgreSQL foreign key violation
func isForeignKeyError(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

// isRetryableTxError reports serialization failures and deadlocks,
// both of which are safe to retry from the start of the transaction.
func isRetryableTxError(err error) bool {
	switch pgErrorCode(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	default:
		return false
	}
}
