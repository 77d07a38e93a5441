package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/quizmeet/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
	errRowIsReferenced = 1451
	errBadNull         = 1048
	errCheckViolated   = 3819
	errAccessDenied    = 1045
	errDBAccessDenied  = 1044
	errTableAccess     = 1142
	errConnRefused     = 2003
	errServerGone      = 2006
	errServerLost      = 2013
)

// mapError converts a go-sql-driver/mysql error into an *errs.Error.
// Errors without a server error number or a transport cause are query
// failures.
func mapError(err error, msg string) error {
	return classify(err, msg, errs.ErrKindQueryFailed)
}

// mapConnError is mapError for dial, ping, begin and close, where any
// unexplained failure means the connection is unusable.
func mapConnError(err error, msg string) error {
	return classify(err, msg, errs.ErrKindConnectionFailed)
}

func mapScanError(err error) error {
	return classify(err, "failed to scan row", errs.ErrKindQueryFailed)
}

func classify(err error, msg string, fallback errs.ErrKind) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(errorNumberKind(mysqlErr.Number), mysqlErr.Message, err)
	}

	if brokenConn(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(fallback, msg, err)
}

// brokenConn reports whether err came from the transport rather than the
// statement.
func brokenConn(err error) bool {
	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, gomysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &netErr)
}

func errorNumberKind(n uint16) errs.ErrKind {
	switch n {
	case errDuplicateEntry:
		return errs.ErrKindUniqueViolation
	case errNoReferencedRow, errRowIsReferenced, errBadNull, errCheckViolated:
		return errs.ErrKindConstraintViolation
	case errAccessDenied, errDBAccessDenied, errTableAccess:
		return errs.ErrKindPermissionDenied
	case errConnRefused, errServerGone, errServerLost:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
