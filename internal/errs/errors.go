// Package errs provides the unified error type used across quizmeet.
//
// Every subsystem (database drivers, pool, bootstrap, migrations) wraps its
// native errors into *errs.Error before returning them. Callers classify
// errors with the Is* predicates and never import driver packages to do so.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindUniqueViolation, "duplicate key", pgErr)
//
//	// At an operation boundary, check the kind:
//	if errs.IsUniqueViolation(err) {
//	    // friendlier message
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows matched
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL execution error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure

	ErrKindUniqueViolation     // duplicate key
	ErrKindConstraintViolation // foreign key, not null, check
	ErrKindPoolExhausted       // no connection freed up before the acquire timeout
	ErrKindConfigMissing       // required configuration value absent
	ErrKindPoolConstruction    // malformed connection target or pool parameters
	ErrKindReadinessTimeout    // database never became reachable
	ErrKindMigrationFailed     // a migration script failed
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindUniqueViolation:
		return "unique_violation"
	case ErrKindConstraintViolation:
		return "constraint_violation"
	case ErrKindPoolExhausted:
		return "pool_exhausted"
	case ErrKindConfigMissing:
		return "config_missing"
	case ErrKindPoolConstruction:
		return "pool_construction"
	case ErrKindReadinessTimeout:
		return "readiness_timeout"
	case ErrKindMigrationFailed:
		return "migration_failed"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind abort a bootstrap attempt.
// Per-operation kinds are recovered at the operation boundary instead.
func (k ErrKind) Fatal() bool {
	switch k {
	case ErrKindConfigMissing, ErrKindPoolConstruction, ErrKindReadinessTimeout, ErrKindMigrationFailed:
		return true
	default:
		return false
	}
}

// Error is the single error type returned by all quizmeet subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a SQL execution failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsUniqueViolation reports whether err is a duplicate-key conflict.
func IsUniqueViolation(err error) bool {
	return KindOf(err) == ErrKindUniqueViolation
}

// IsConstraintViolation reports whether err violates a non-unique constraint.
func IsConstraintViolation(err error) bool {
	return KindOf(err) == ErrKindConstraintViolation
}

// IsPoolExhausted reports whether err is an acquisition timeout on a full pool.
func IsPoolExhausted(err error) bool {
	return KindOf(err) == ErrKindPoolExhausted
}

// IsConfigMissing reports whether err names an absent configuration value.
func IsConfigMissing(err error) bool {
	return KindOf(err) == ErrKindConfigMissing
}

// IsPoolConstruction reports whether the pool could not be built.
func IsPoolConstruction(err error) bool {
	return KindOf(err) == ErrKindPoolConstruction
}

// IsReadinessTimeout reports whether a freshly provisioned database never became reachable.
func IsReadinessTimeout(err error) bool {
	return KindOf(err) == ErrKindReadinessTimeout
}

// IsMigrationFailed reports whether a migration script failed.
func IsMigrationFailed(err error) bool {
	return KindOf(err) == ErrKindMigrationFailed
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
