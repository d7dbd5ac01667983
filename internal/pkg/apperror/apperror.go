// Package apperror classifies request failures into the kinds the HTTP layer
// knows how to answer: not found, invalid input, unauthorized and upstream.
//
// Domains keep their own sentinel errors and wrap them with a kind:
//
//	return apperror.NotFound(ErrPhotoNotFound)
//
// Handlers hand any error to errorhandler.Handle, which uses KindOf to pick
// the status code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable failure class.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindUpstream     Kind = "UPSTREAM"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// HTTPStatus returns the response status for a kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// NotFound marks err as a missing photo, blob or comment target.
func NotFound(err error) error { return wrap(KindNotFound, err) }

// InvalidInput marks err as a malformed id or missing required field.
func InvalidInput(err error) error { return wrap(KindInvalidInput, err) }

// Unauthorized marks err as a missing session on an auth-required route.
func Unauthorized(err error) error { return wrap(KindUnauthorized, err) }

// Upstream marks err as a blob store, image library or queue failure.
func Upstream(err error) error { return wrap(KindUpstream, err) }

// Upstreamf wraps err as Upstream with a formatted prefix.
func Upstreamf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Upstream(fmt.Errorf(format+": %w", append(args, err)...))
}

// KindOf returns the outermost Kind in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
