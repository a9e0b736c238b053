package position

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies location failures.
type Code string

const (
	CodePermissionDenied    Code = "permission-denied"
	CodePositionUnavailable Code = "position-unavailable"
	CodeTimeout             Code = "timeout"
	CodeUnsupported         Code = "unsupported"
	CodeUnknown             Code = "unknown"
)

var codeMessages = map[Code]string{
	CodePermissionDenied:    "Location permission was denied. Allow location access to track activities.",
	CodePositionUnavailable: "Your position is currently unavailable. Move to open sky and try again.",
	CodeTimeout:             "Getting your location took too long. Please try again.",
	CodeUnsupported:         "This device does not support location services.",
	CodeUnknown:             "An unknown error occurred while getting your location.",
}

// Message is the human-readable text shown for the code.
func (c Code) Message() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return codeMessages[CodeUnknown]
}

// Error is a classified location error. Two Errors match with errors.Is
// when their codes match.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func NewError(code Code, cause error) *Error {
	return &Error{Code: code, Message: code.Message(), Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrPermissionDenied    = NewError(CodePermissionDenied, nil)
	ErrPositionUnavailable = NewError(CodePositionUnavailable, nil)
	ErrTimeout             = NewError(CodeTimeout, nil)
	ErrUnsupported         = NewError(CodeUnsupported, nil)
	ErrUnknown             = NewError(CodeUnknown, nil)
)

// Classify returns err as an *Error. Context deadlines become timeouts;
// anything unrecognized is unknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeTimeout, err)
	}
	return NewError(CodeUnknown, err)
}
