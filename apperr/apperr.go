// Package apperr defines the error taxonomy shared by the server handlers and
// the client-side cart, address and checkout core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by the recovery action it calls for.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is detectable on the client and never reaches the network.
	KindValidation
	KindConflict
	KindForbidden
	KindNotFound
	KindUnauthorized
	// KindTransient covers network failures and 5xx responses; callers may retry.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindConflict:
		return "CONFLICT"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindTransient:
		return "TRANSIENT"
	default:
		return "INTERNAL"
	}
}

// Error carries a Kind, an optional offending field and a user-facing message.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Transient(message string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: message, Cause: cause}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
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

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// MessageOf returns the user-facing message without the wrapped cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps a kind to the status code the REST surface responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus rebuilds an error from a non-2xx response.
func FromHTTPStatus(status int, field, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	var kind Kind
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status == http.StatusConflict:
		kind = KindConflict
	case status == http.StatusForbidden:
		kind = KindForbidden
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		kind = KindTransient
	default:
		kind = KindInternal
	}
	return &Error{Kind: kind, Field: field, Message: message}
}
