package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindQuotaExceeded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindQuotaExceeded:
		return "quota_exceeded"
	default:
		return "unexpected"
	}
}

// StatusCode maps the kind to its HTTP status
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindQuotaExceeded:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is a constraint violation on a single input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed error returned by services
type Error struct {
	Kind    Kind
	Reason  string // stable code, e.g. a policy deny reason
	Message string
	Fields  []FieldError
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

// Is matches another *Error of the same kind and reason, so sentinel
// values like ErrAdminQuota work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Reason == "" || e.Reason == t.Reason)
}

// StatusCode returns the HTTP status for the error
func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

// Sentinels for errors.Is checks
var (
	ErrAdminQuota = &Error{Kind: KindQuotaExceeded, Reason: "admin_quota_exceeded"}
	ErrNotFound   = &Error{Kind: KindNotFound}
)

// AdminQuotaMessage is shown when the administrator cap is reached
const AdminQuotaMessage = "Maximum number of administrators (3) has been reached. Please register as a regular user."

func NewValidation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Reason: "validation_failed", Message: message, Fields: fields}
}

func NewAuthentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Reason: "authentication_required", Message: message}
}

// NewAuthorization carries the policy deny reason
func NewAuthorization(reason, message string) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Reason: "not_found", Message: message}
}

// NewNotVisible hides a resource the actor may not see behind a 404
func NewNotVisible(message string) *Error {
	return &Error{Kind: KindNotFound, Reason: "not_visible", Message: message}
}

func NewAdminQuotaExceeded() *Error {
	return &Error{Kind: KindQuotaExceeded, Reason: ErrAdminQuota.Reason, Message: AdminQuotaMessage}
}

func NewUnexpected(message string, cause error) *Error {
	return &Error{Kind: KindUnexpected, Reason: "internal_error", Message: message, Cause: cause}
}

// From returns err as an *Error, wrapping unknown errors as unexpected
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnexpected("Internal server error", err)
}

// KindOf returns the kind of err, KindUnexpected for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
