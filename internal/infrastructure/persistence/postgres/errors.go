package postgres

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

// translateError maps driver errors onto the shared error kinds. Errors it
// does not recognise are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return shared.WrapError("postgres", "Exec", shared.ErrConflict, pgErr.Code, err)
		case codeAdminShutdown, codeCannotConnectNow:
			return shared.WrapError("postgres", "Exec", shared.ErrUnavailable, pgErr.Code, err)
		}
		return err
	}

	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, pgx.ErrTxClosed) {
		return shared.WrapError("postgres", "Conn", shared.ErrUnavailable, "connection closed", err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return shared.WrapError("postgres", "Connect", shared.ErrUnavailable, "cannot connect", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return shared.WrapError("postgres", "Exec", shared.ErrTimeout, "deadline exceeded", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return shared.WrapError("postgres", "Conn", shared.ErrUnavailable, "network error", err)
	}

	return err
}

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return false
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
