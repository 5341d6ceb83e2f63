// Package apperr defines the error taxonomy surfaced by the matching engine.
// Codes are gRPC status codes so any transport can convert errors directly.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a classified engine error.
type Error struct {
	Code codes.Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError and status.Code understand the error.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Error())
}

// InvalidArgument reports a malformed or out-of-range request parameter.
func InvalidArgument(format string, args ...any) error {
	return &Error{Code: codes.InvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing job or helper.
func NotFound(format string, args ...any) error {
	return &Error{Code: codes.NotFound, Msg: fmt.Sprintf(format, args...)}
}

// FailedPrecondition reports an operation that cannot run in the current state.
func FailedPrecondition(format string, args ...any) error {
	return &Error{Code: codes.FailedPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a collaborator failure.
func Unavailable(err error, format string, args ...any) error {
	return &Error{Code: codes.Unavailable, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first classified error in the chain.
// Unclassified errors map to codes.Unknown and nil maps to codes.OK.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}

	var classified interface{ GRPCStatus() *status.Status }
	if errors.As(err, &classified) {
		return classified.GRPCStatus().Code()
	}

	return codes.Unknown
}

// Is reports whether err carries the provided code.
func Is(err error, code codes.Code) bool {
	return CodeOf(err) == code
}
