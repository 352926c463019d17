// Package postgres - классификация ошибок PostgreSQL.
//
// Сессионный слой ошибки не трогает: он пробрасывает их наверх как есть.
// Эти помощники - для вызывающего кода, которому нужно отличать
// constraint violation от serialization failure (например, для retry
// на уровне приложения).
package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes (из спецификации)
const (
	// Constraint violations
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"

	// Serialization failures
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// pgError достаёт *pgconn.PgError из цепочки ошибок.
// Слой сессий оборачивает ошибки через %w, поэтому нужен errors.As,
// а не прямое приведение типа.
func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// isPgError проверяет, является ли ошибка PostgreSQL ошибкой с определённым кодом.
func isPgError(err error, code string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == code
}

// IsUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint.
// constraintName - опциональное имя constraint для проверки.
func IsUniqueViolation(err error, constraintName string) bool {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != pgUniqueViolation {
		return false
	}

	// Если указано имя constraint, проверяем его
	if constraintName != "" {
		return strings.Contains(pgErr.ConstraintName, constraintName)
	}

	return true
}

// IsForeignKeyViolation проверяет нарушение foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	return isPgError(err, pgForeignKeyViolation)
}

// IsNotNullViolation проверяет нарушение NOT NULL constraint.
func IsNotNullViolation(err error) bool {
	return isPgError(err, pgNotNullViolation)
}

// IsCheckViolation проверяет нарушение CHECK constraint.
func IsCheckViolation(err error) bool {
	return isPgError(err, pgCheckViolation)
}

// IsSerializationFailure проверяет ошибку сериализации или deadlock.
// Такие транзакции обычно имеет смысл повторить в новой сессии.
func IsSerializationFailure(err error) bool {
	return isPgError(err, pgSerializationFailure) || isPgError(err, pgDeadlockDetected)
}

// IsRetryable проверяет, можно ли повторить операцию в новой транзакции.
// Retryable: deadlock, serialization failure, connection errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsSerializationFailure(err) {
		return true
	}

	// Class 08 - Connection Exception
	if pgErr, ok := pgError(err); ok {
		return strings.HasPrefix(pgErr.Code, "08")
	}

	return false
}
