// Package errors provides the structured error type used across flowlab's
// simulation core: a Kind plus an optional attribute bag, so callers can
// branch on failure category without string-matching messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind defines the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	// Truncated means a cursor read ran past the committed end of the view.
	Truncated
	// Inconsistent means a header length/total-length field disagreed with
	// what was actually available; treated as Truncated for recovery.
	Inconsistent
	// BadState means an internal invariant was violated (e.g. a MIN column
	// rollover, or a flow-id the index vector claimed existed but didn't).
	BadState
	// PolicyUnknown means a configured insertion/replacement policy name has
	// no matching implementation. Fatal at setup only.
	PolicyUnknown
	// EndOfInput means a packet source has no more data to yield. Callers
	// should treat it as a normal replay-complete signal, not a failure.
	EndOfInput
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Inconsistent:
		return "inconsistent"
	case BadState:
		return "bad_state"
	case PolicyUnknown:
		return "policy_unknown"
	case EndOfInput:
		return "end_of_input"
	default:
		return "unknown"
	}
}

// Error represents a structured error in the flowlab simulator.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a
// formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to an error. If err is not an *Error, it is
// wrapped as BadState first.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: BadState, Message: err.Error(), Underlying: err}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if it's not a flowlab error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes returns all attributes associated with err and its chain.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error

	tempErr := err
	for tempErr != nil {
		if errors.As(tempErr, &e) {
			for k, v := range e.Attributes {
				if _, ok := attrs[k]; !ok {
					attrs[k] = v
				}
			}
			tempErr = e.Underlying
		} else {
			break
		}
	}

	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling Unwrap on err, if any.
func Unwrap(err error) error { return errors.Unwrap(err) }
