package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies board failures for the caller.
type ErrorKind string

const (
	KindValidationFailed    ErrorKind = "validation_failed"
	KindNotFound            ErrorKind = "not_found"
	KindRemoteCreateFailed  ErrorKind = "remote_create_failed"
	KindRemoteUpdateFailed  ErrorKind = "remote_update_failed"
	KindRemoteDeleteFailed  ErrorKind = "remote_delete_failed"
	KindRemoteMoveFailed    ErrorKind = "remote_move_failed"
	KindRemoteLoadFailed    ErrorKind = "remote_load_failed"
	KindRemoteCommentFailed ErrorKind = "remote_comment_failed"
	KindCacheUnavailable    ErrorKind = "cache_unavailable"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrValidationFailed    = &Error{Kind: KindValidationFailed}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrRemoteCreateFailed  = &Error{Kind: KindRemoteCreateFailed}
	ErrRemoteUpdateFailed  = &Error{Kind: KindRemoteUpdateFailed}
	ErrRemoteDeleteFailed  = &Error{Kind: KindRemoteDeleteFailed}
	ErrRemoteMoveFailed    = &Error{Kind: KindRemoteMoveFailed}
	ErrRemoteLoadFailed    = &Error{Kind: KindRemoteLoadFailed}
	ErrRemoteCommentFailed = &Error{Kind: KindRemoteCommentFailed}
	ErrCacheUnavailable    = &Error{Kind: KindCacheUnavailable}
)

// Error is returned by every board operation that fails.
type Error struct {
	Kind   ErrorKind
	Op     string
	TaskID ID
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.TaskID != "" {
		msg += fmt.Sprintf(" (task %s)", e.TaskID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, op string, id ID, err error) *Error {
	return &Error{Kind: kind, Op: op, TaskID: id, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind ErrorKind, op string, id ID, format string, args ...any) *Error {
	return newError(kind, op, id, fmt.Errorf(format, args...))
}

// Wrap builds an *Error around err.
func Wrap(kind ErrorKind, op string, id ID, err error) *Error {
	return newError(kind, op, id, err)
}
