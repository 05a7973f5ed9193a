// Package domainerrors carries caller-visible failure codes.
//
// Every rejected ledger call terminates with exactly one Code. Services create
// errors with New or Wrap; the call surface reads the code back with CodeOf and
// renders it as err(code). Infrastructure facts (not found, conflict) live in
// pkg/platform/sentinel and are translated into a Code at the service layer.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is the stable identifier a caller branches on.
type Code string

const (
	// Registry failure taxonomy.
	CodeDuplicateIdentity Code = "ERR_DUPLICATE_IDENTITY"
	CodeUnauthorized      Code = "ERR_UNAUTHORIZED"
	CodeInvalidScalar     Code = "ERR_INVALID_SCALAR"
	CodeInvalidState      Code = "ERR_INVALID_STATE"
	CodeNotFound          Code = "ERR_NOT_FOUND"

	// CodeAlreadyRegistered is raised by the role registry; the call surface
	// reports it as CodeDuplicateIdentity.
	CodeAlreadyRegistered Code = "ERR_ALREADY_REGISTERED"

	// CodeInvalidInput covers malformed HTTP requests (bad JSON, query
	// parameters). Call receipts never carry it; out-of-range arguments are
	// CodeInvalidScalar.
	CodeInvalidInput Code = "ERR_INVALID_INPUT"

	// CodeInternal marks storage or infrastructure faults.
	CodeInternal Code = "ERR_INTERNAL"
)

// Error is a coded domain error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal for errors
// that were never classified.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
