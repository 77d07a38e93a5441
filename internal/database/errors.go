package database

import (
	"github.com/koustreak/quizmeet/internal/errs"
)

// --- Constructor helpers used by the query helpers and drivers ---

func errQuery(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}

// passthrough keeps an already classified error intact and wraps anything
// else as a query failure.
func passthrough(msg string, err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errQuery(msg, err)
}
