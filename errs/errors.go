package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP status mapping.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindNotFound
	KindBackend
	KindConflict
	KindCancelled
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindBackend:
		return "backend_error"
	case KindConflict:
		return "conflict"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the response status used by the API layer.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindCancelled:
		// client closed request; nginx convention
		return 499
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func InvalidArgf(format string, args ...any) *Error {
	return Newf(KindInvalidArgument, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

func Backendf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindBackend, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Context cancellation maps to
// KindCancelled, anything untyped to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}
