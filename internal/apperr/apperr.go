// Package apperr defines the error kinds surfaced to callers of the client,
// auth and mutation layers. Errors are values: callers branch with errors.Is
// against the sentinels or errors.As into *Error.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNetwork
	KindAuth
	KindNotFound
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict_error"
	case KindNetwork:
		return "network_error"
	case KindAuth:
		return "auth_error"
	case KindNotFound:
		return "not_found_error"
	case KindCanceled:
		return "canceled"
	default:
		return "internal_error"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("request rejected by server")
	ErrNetwork    = errors.New("request could not complete")
	ErrAuth       = errors.New("authentication failed")
	ErrNotFound   = errors.New("not found")
	ErrCanceled   = errors.New("canceled")
)

var sentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindConflict:   ErrConflict,
	KindNetwork:    ErrNetwork,
	KindAuth:       ErrAuth,
	KindNotFound:   ErrNotFound,
	KindCanceled:   ErrCanceled,
}

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Status  int               // HTTP status, zero when no response was received
	Message string            // server supplied or locally built message
	Fields  map[string]string // field errors for KindValidation
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case len(e.Fields) > 0:
		b.WriteString(formatFields(e.Fields))
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Validation builds a KindValidation error from field errors.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Fields: fields}
}

// FromStatus classifies a non-2xx response. A 401 that reaches the caller
// means the refresh already failed, so it is an auth error.
func FromStatus(op string, status int, message string) *Error {
	kind := KindConflict
	switch status {
	case 401:
		kind = KindAuth
	case 404:
		kind = KindNotFound
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: message}
}

// Network wraps a transport failure.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Auth wraps an authentication failure.
func Auth(op string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return &Error{Kind: KindAuth, Op: op, Status: ae.Status, Message: ae.Message, Err: err}
	}
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func formatFields(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}
	return strings.Join(parts, "; ")
}
