// Package errors provides custom error types for the signal pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindParse         Kind = "ParseError"
	KindTimezone      Kind = "TimezoneError"
	KindStore         Kind = "StoreUnavailable"
	KindSerialization Kind = "SerializationError"
	KindMirror        Kind = "MirrorError"
	KindUnknown       Kind = "UnknownError"
)

// Standard sentinel errors, one per kind.
var (
	ErrParse            = errors.New("malformed input")
	ErrTimezone         = errors.New("unknown timezone")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrSerialization    = errors.New("stored data cannot be parsed")
	ErrMirror           = errors.New("mirror delivery failed")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

var sentinels = map[Kind]error{
	KindParse:         ErrParse,
	KindTimezone:      ErrTimezone,
	KindStore:         ErrStoreUnavailable,
	KindSerialization: ErrSerialization,
	KindMirror:        ErrMirror,
}

// SignalError is the structured failure surfaced to the request layer.
type SignalError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *SignalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Op, e.Message)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that belongs to the error's kind.
func (e *SignalError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New creates a new SignalError.
func New(kind Kind, op, message string, err error) *SignalError {
	return &SignalError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewParseError reports a malformed or missing input field.
func NewParseError(op, message string, err error) *SignalError {
	return New(KindParse, op, message, err)
}

// NewTimezoneError reports an unrecognized zone identifier.
func NewTimezoneError(op, zone string, err error) *SignalError {
	return New(KindTimezone, op, fmt.Sprintf("unknown timezone %q", zone), err)
}

// NewStoreError reports a backing resource that cannot be opened, read or written.
func NewStoreError(op, message string, err error) *SignalError {
	return New(KindStore, op, message, err)
}

// NewSerializationError reports stored content that cannot be parsed.
func NewSerializationError(op, message string, err error) *SignalError {
	return New(KindSerialization, op, message, err)
}

// NewMirrorError reports a failed remote copy.
func NewMirrorError(sink string, err error) *SignalError {
	return New(KindMirror, "mirror", sink, err)
}

// KindOf returns the kind of the first SignalError in err's chain.
func KindOf(err error) Kind {
	var se *SignalError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// MessageOf returns the human-readable part of a SignalError, or err.Error().
func MessageOf(err error) string {
	var se *SignalError
	if errors.As(err, &se) {
		if se.Err != nil {
			return fmt.Sprintf("%s: %v", se.Message, se.Err)
		}
		return se.Message
	}
	return err.Error()
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
