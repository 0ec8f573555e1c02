package interfaces

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, wire-visible failure code. Codes never change
// meaning; clients and operators key off them, not off messages.
type ErrorCode string

const (
	// CodeSpecNotFound: no raw spec exists for the requested identity.
	CodeSpecNotFound ErrorCode = "E200"

	// CodePostureNotFound: a spec references a posture with no file.
	CodePostureNotFound ErrorCode = "E201"

	// CodeSSHKeyNotFound: a user entry references an unknown SSH key ID.
	CodeSSHKeyNotFound ErrorCode = "E202"

	// CodeMalformedToken: wrong segment count, bad encoding, missing
	// required claim, or unsupported version.
	CodeMalformedToken ErrorCode = "E300"

	// CodeInvalidSignature: signature mismatch or identity binding failure.
	CodeInvalidSignature ErrorCode = "E301"

	// CodeSchemaViolation: a resolved document failed validation.
	CodeSchemaViolation ErrorCode = "E400"

	// CodeInternal: configuration or unexpected server-side error.
	CodeInternal ErrorCode = "E500"
)

// Error is the typed failure carried by every resolver and auth path. The
// HTTP handler is the single place that reads StatusCode; other call sites
// treat Error as an opaque error value and wrap it normally.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Err        error
}

// Error returns the message, including the underlying cause when present.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewSpecNotFound reports a missing raw spec for an identity.
func NewSpecNotFound(identity string) *Error {
	return &Error{
		Code:       CodeSpecNotFound,
		Message:    fmt.Sprintf("no spec found for identity %q", identity),
		StatusCode: http.StatusNotFound,
	}
}

// NewPostureNotFound reports a dangling posture foreign key.
func NewPostureNotFound(name string) *Error {
	return &Error{
		Code:       CodePostureNotFound,
		Message:    fmt.Sprintf("posture %q not found", name),
		StatusCode: http.StatusNotFound,
	}
}

// NewSSHKeyNotFound reports the first unknown SSH key ID in a user entry.
func NewSSHKeyNotFound(id string) *Error {
	return &Error{
		Code:       CodeSSHKeyNotFound,
		Message:    fmt.Sprintf("ssh key %q not found", id),
		StatusCode: http.StatusNotFound,
	}
}

// NewMalformedToken reports a structurally invalid token. The reason is safe
// to surface: it never distinguishes signature-relevant failures.
func NewMalformedToken(reason string) *Error {
	return &Error{
		Code:       CodeMalformedToken,
		Message:    "malformed token: " + reason,
		StatusCode: http.StatusBadRequest,
	}
}

// NewInvalidSignature reports signature or identity-binding failure. The
// message is deliberately generic: decode failures and byte mismatches must
// be indistinguishable to the caller.
func NewInvalidSignature() *Error {
	return &Error{
		Code:       CodeInvalidSignature,
		Message:    "invalid signature",
		StatusCode: http.StatusUnauthorized,
	}
}

// NewSchemaViolation reports a resolved document that failed validation.
func NewSchemaViolation(reason string) *Error {
	return &Error{
		Code:       CodeSchemaViolation,
		Message:    "resolved spec failed validation: " + reason,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewInternal reports a server-side configuration or runtime failure.
func NewInternal(message string, err error) *Error {
	return &Error{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// AsError extracts the typed Error from an error chain. Unclassified errors
// come back as a generic E500 so the handler never leaks internals.
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{
		Code:       CodeInternal,
		Message:    "internal error",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
