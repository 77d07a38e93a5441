package postgres

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/quizmeet/internal/errs"
)

// PostgreSQL SQLSTATE error codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation       = "23505"
	pgErrInsufficientPrivilege = "42501"
	pgErrAdminShutdown         = "57P01"

	pgClassIntegrity     = "23"
	pgClassConnection    = "08"
	pgClassAuthorization = "28"
)

// mapError converts a pgx error into an *errs.Error. Errors that carry no
// SQLSTATE and show no sign of a broken connection are query failures, so
// a client-side encoding error does not cost the pool a healthy connection.
func mapError(err error, msg string) error {
	return classify(err, msg, errs.ErrKindQueryFailed)
}

// mapConnError is mapError for dial, ping, begin and close, where any
// unexplained failure means the connection is unusable.
func mapConnError(err error, msg string) error {
	return classify(err, msg, errs.ErrKindConnectionFailed)
}

// mapScanError is mapError for Scan, where a non-server error means the
// destination did not fit the column.
func mapScanError(err error) error {
	return classify(err, "failed to scan row", errs.ErrKindQueryFailed)
}

func classify(err error, msg string, fallback errs.ErrKind) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(sqlStateKind(pgErr.Code), pgErr.Message, err)
	}

	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if brokenConn(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(fallback, msg, err)
}

// brokenConn reports whether err came from the transport rather than the
// statement.
func brokenConn(err error) bool {
	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	return errors.As(err, &connectErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func sqlStateKind(code string) errs.ErrKind {
	switch {
	case code == pgErrUniqueViolation:
		return errs.ErrKindUniqueViolation
	case strings.HasPrefix(code, pgClassIntegrity):
		return errs.ErrKindConstraintViolation
	case strings.HasPrefix(code, pgClassConnection), code == pgErrAdminShutdown:
		return errs.ErrKindConnectionFailed
	case strings.HasPrefix(code, pgClassAuthorization), code == pgErrInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	default:
		return errs.ErrKindQueryFailed
	}
}
