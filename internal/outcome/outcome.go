// Package outcome turns the result of a storage operation into the
// uniform response envelope returned to API clients.
//
// Every storage failure maps to 409 Conflict. Unique-key violations get a
// fixed duplicate notice; all other failures carry the rendered error.
package outcome

import (
	"fmt"

	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
)

// Status codes carried by an Envelope.
const (
	StatusCreated  = 201
	StatusOK       = 200
	StatusConflict = 409
)

// Operation is the kind of storage operation that produced an outcome.
type Operation int

const (
	OpCreate Operation = iota
	OpRead
	OpList
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpRead:
		return "read"
	case OpList:
		return "list"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Outcome is either a produced value or a storage failure.
type Outcome[T any] struct {
	value T
	err   error
	ok    bool
}

// Success wraps a produced value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, ok: true}
}

// Failure wraps a storage error. A nil error still counts as a failure.
func Failure[T any](err error) Outcome[T] {
	return Outcome[T]{err: err}
}

// From builds an Outcome from the usual (value, error) pair.
func From[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// Value returns the produced value and whether the operation succeeded.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.ok
}

// Err returns the failure, or nil on success.
func (o Outcome[T]) Err() error {
	if o.ok {
		return nil
	}
	if o.err == nil {
		return errs.New(errs.ErrKindUnknown, unknownFailureMessage)
	}
	return o.err
}

// Envelope is the JSON body of every entity response.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// Class is the caller-facing category of a storage failure.
type Class int

const (
	ClassStorageFailure Class = iota
	ClassUniqueViolation
)

func (c Class) String() string {
	if c == ClassUniqueViolation {
		return "unique_violation"
	}
	return "storage_failure"
}

// Classify puts a storage error into one of the two failure classes.
func Classify(err error) Class {
	if errs.IsUniqueViolation(err) {
		return ClassUniqueViolation
	}
	return ClassStorageFailure
}

const unknownFailureMessage = "storage operation failed"

// DuplicateMessage is the notice returned for a unique-key conflict.
func DuplicateMessage(entity string) string {
	return fmt.Sprintf("Duplicate %s", entity)
}

// Recorder counts translated outcomes.
type Recorder interface {
	Observe(op Operation, entity string, code int)
}

// Translator carries the logging and metrics side of translation.
// A nil *Translator translates without either.
type Translator struct {
	log      *logger.Logger
	recorder Recorder
}

// NewTranslator returns a Translator. Both arguments may be nil.
func NewTranslator(log *logger.Logger, rec Recorder) *Translator {
	if log == nil {
		log = logger.Nop()
	}
	return &Translator{log: log, recorder: rec}
}

// Translate maps an outcome to its envelope: 201 for a created value,
// 200 for any other success, 409 for every failure. entity names what
// the operation acted on and appears in the duplicate notice and in logs.
// Data is set only on success.
func Translate[T any](tr *Translator, o Outcome[T], op Operation, entity string) Envelope[T] {
	var env Envelope[T]

	if v, ok := o.Value(); ok {
		env.Code = StatusOK
		if op == OpCreate {
			env.Code = StatusCreated
		}
		env.Data = &v
		tr.observe(op, entity, env.Code, nil)
		return env
	}

	err := o.Err()
	env.Code = StatusConflict
	if Classify(err) == ClassUniqueViolation {
		env.Message = DuplicateMessage(entity)
	} else {
		env.Message = err.Error()
	}
	tr.observe(op, entity, env.Code, err)
	return env
}

func (tr *Translator) observe(op Operation, entity string, code int, err error) {
	if tr == nil {
		return
	}
	if tr.recorder != nil {
		tr.recorder.Observe(op, entity, code)
	}

	fields := map[string]any{
		"op":     op.String(),
		"entity": entity,
		"code":   code,
	}
	switch {
	case err == nil:
		tr.log.DebugWith("storage operation succeeded", fields)
	case Classify(err) == ClassUniqueViolation:
		tr.log.WarnWith("duplicate entity rejected", err, fields)
	default:
		fields["kind"] = errs.KindOf(err).String()
		tr.log.ErrorWith("storage operation failed", err, fields)
	}
}
