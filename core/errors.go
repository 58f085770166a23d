package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) > 0 {
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return ""
}

// FieldMessage returns the message reported for `field`, if any.
func (err ValidationError) FieldMessage(field string) string {
	for _, fe := range err.Fields {
		if fe.Field == field {
			return fe.Error
		}
	}
	return ""
}

type AuthErrorKind int

const (
	AuthInvalidCredentials AuthErrorKind = iota + 1
	AuthNetwork
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthInvalidCredentials:
		return "invalid credentials"
	case AuthNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// AuthError is returned by sign-in/sign-out. It never says which credential was wrong.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func NewAuthError(kind AuthErrorKind, err error) error {
	return &AuthError{Kind: kind, Err: err}
}

func (err *AuthError) Error() string {
	if err.Err == nil {
		return "auth: " + err.Kind.String()
	}
	return fmt.Sprintf("auth: %s: %v", err.Kind, err.Err)
}

func (err *AuthError) Unwrap() error { return err.Err }

type DataErrorKind int

const (
	DataNotFound DataErrorKind = iota + 1
	DataPermissionDenied
	DataNetwork
	DataValidation
)

func (k DataErrorKind) String() string {
	switch k {
	case DataNotFound:
		return "not found"
	case DataPermissionDenied:
		return "permission denied"
	case DataNetwork:
		return "network"
	case DataValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// DataError is returned by table operations.
type DataError struct {
	Kind  DataErrorKind
	Table string
	Err   error
}

func NewDataError(kind DataErrorKind, table string, err error) error {
	return &DataError{Kind: kind, Table: table, Err: err}
}

func (err *DataError) Error() string {
	msg := fmt.Sprintf("%s: %s", err.Table, err.Kind)
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *DataError) Unwrap() error { return err.Err }

// IsAuthError reports whether err carries an AuthError of the given kind.
func IsAuthError(err error, kind AuthErrorKind) bool {
	var aerr *AuthError
	return errors.As(err, &aerr) && aerr.Kind == kind
}

// IsDataError reports whether err carries a DataError of the given kind.
func IsDataError(err error, kind DataErrorKind) bool {
	var derr *DataError
	return errors.As(err, &derr) && derr.Kind == kind
}

// InvariantError marks a local state that should have been unreachable (eg. a write without a session).
// It is unrecoverable for the current screen.
type InvariantError struct {
	msg string
}

func NewInvariantError(msg string) error {
	return &InvariantError{msg: msg}
}

func (err *InvariantError) Error() string {
	return err.msg
}

func IsInvariant(err error) bool {
	var ierr *InvariantError
	return errors.As(err, &ierr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
