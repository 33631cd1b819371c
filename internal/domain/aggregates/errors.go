package aggregates

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed review or alert write. Services translate it into the pipeline's
// error kinds: conflict becomes an edit conflict, not_found a missing review, validation a bad
// request.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Error is returned by every aggregate write. Op is the contract-qualified operation name.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether repeating the same write may succeed. Conflicts are not retryable:
// the caller must reload the review and resubmit against the new version.
func (e *Error) Retryable() bool {
	return e != nil && e.Code == CodeRetryable
}

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// Wrap tags err with code. The cause text becomes the message.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: err.Error(), Cause: err}
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns "" when err carries no aggregate code.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if errors.As(err, &aggErr) {
		return aggErr.Code
	}
	return ""
}
