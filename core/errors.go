package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies runtime failures.
type ErrorKind string

const (
	// KindConfiguration covers unresolved capabilities, unknown roles and
	// other setup mistakes.
	KindConfiguration ErrorKind = "ConfigurationError"
	// KindPolicyRejection covers guard, allowlist and confirmation denials.
	KindPolicyRejection ErrorKind = "PolicyRejection"
	// KindToolExecution covers failures of the underlying tool call.
	KindToolExecution ErrorKind = "ToolExecutionError"
	// KindModel covers chat model failures, including authentication.
	KindModel ErrorKind = "ModelError"
	// KindIterationBudget is raised when a loop exhausts its budget.
	KindIterationBudget ErrorKind = "IterationBudgetExceeded"
	// KindRecursionDepth is raised when nested dispatch goes too deep.
	KindRecursionDepth ErrorKind = "RecursionDepthExceeded"
	// KindCancellation covers cooperative cancellation and run timeouts.
	KindCancellation ErrorKind = "CancellationError"
)

// Sentinels usable with errors.Is to test the kind of any *Error.
var (
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrPolicyRejection = &Error{Kind: KindPolicyRejection}
	ErrToolExecution   = &Error{Kind: KindToolExecution}
	ErrModel           = &Error{Kind: KindModel}
	ErrIterationBudget = &Error{Kind: KindIterationBudget}
	ErrRecursionDepth  = &Error{Kind: KindRecursionDepth}
	ErrCancellation    = &Error{Kind: KindCancellation}
)

// Error is the typed runtime error. Op names the failing operation
// (e.g. "angel.dispatch"), Message is human readable and Err the cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError creates an *Error without a cause.
func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError creates an *Error around a cause.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels: errors.Is(err, core.ErrConfiguration).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
