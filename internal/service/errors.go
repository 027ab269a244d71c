// Package service implements the back-office use cases on top of the
// repositories: onboarding, team management, tenant administration, the
// activity log and the supplier directory.  Handlers call into it and
// translate *Error values into HTTP responses.
package service

import (
	"errors"
	"net/http"

	"github.com/newdeli/backoffice/internal/i18n"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

// Status returns the HTTP status for k.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error is returned by every service method.  Code is an i18n message code;
// Err, when set, is the underlying cause and is never shown to clients.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(code string) *Error { return &Error{Kind: KindValidation, Code: code} }
func unauthenticated(code string) *Error { return &Error{Kind: KindUnauthenticated, Code: code} }
func forbidden(code string) *Error { return &Error{Kind: KindForbidden, Code: code} }
func notFound(code string) *Error { return &Error{Kind: KindNotFound, Code: code} }
func conflict(code string) *Error { return &Error{Kind: KindConflict, Code: code} }

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: i18n.Internal, Err: err}
}

// AsError extracts a service error from err.  Anything else is treated as
// an internal fault.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return internal(err)
}

// IsKind reports whether err is a service error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}
