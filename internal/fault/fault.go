// Package fault defines the closed error taxonomy shared by every layer of
// the service. Handlers and services return tagged *fault.Error values;
// the problem package is the single place where a Kind becomes an HTTP
// status code.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a category of failure. The set is closed: anything that
// does not match a declared kind is treated as KindInternal at the boundary.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindUnsupportedMedia   Kind = "unsupported_media"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
	KindUnavailable        Kind = "unavailable"
)

// FieldViolation describes a single invalid field in a validation failure.
// Violations are carried through to the problem body verbatim.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a tagged error carrying a Kind, a client-safe detail message,
// optional field-level violations and an optional wrapped cause.
type Error struct {
	Kind       Kind
	Detail     string
	Violations []FieldViolation
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a tagged error with the given kind and client-safe detail.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap creates a tagged error around an underlying cause. The cause is kept
// for logging and errors.Is checks but is never rendered to the client.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

// Validation creates a validation-kind error carrying field violations.
func Validation(detail string, violations ...FieldViolation) *Error {
	return &Error{Kind: KindValidation, Detail: detail, Violations: violations}
}

// KindOf extracts the Kind from an error chain. Untagged errors report
// KindInternal so that unexpected failures always surface as 500s rather
// than leaking details.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
