package preview

import (
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/component"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/transpile"
)

// Kind is the error kind shown in the error panel.
type Kind = host.ErrorKind

const (
	KindCompile     = host.KindCompile
	KindRuntime     = host.KindRuntime
	KindNoComponent = host.KindNoComponent
	KindRender      = host.KindRender
)

// Error is a failed pipeline attempt. Message and Stack are passed through
// raw.
type Error struct {
	Kind         Kind                   `json:"kind"`
	Message      string                 `json:"message"`
	Stack        string                 `json:"stack,omitempty"`
	OriginalCode string                 `json:"originalCode,omitempty"`
	Diagnostics  []transpile.Diagnostic `json:"diagnostics,omitempty"`
	Candidates   []component.Candidate  `json:"candidates,omitempty"`
	Console      []sandbox.LogEntry     `json:"console,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Describe converts the error into the host's error panel content
func (e *Error) Describe() host.ErrorInfo {
	return host.ErrorInfo{
		Kind:         e.Kind,
		Message:      e.Message,
		Stack:        e.Stack,
		OriginalCode: e.OriginalCode,
		Console:      e.Console,
	}
}

func compileError(res transpile.Result) *Error {
	err := res.Err()
	return &Error{
		Kind:         KindCompile,
		Message:      err.Error(),
		OriginalCode: res.OriginalCode,
		Diagnostics:  res.Errors,
		cause:        err,
	}
}

func thrownError(kind Kind, err error, originalCode string) *Error {
	ex := sandbox.NewException(err)
	return &Error{
		Kind:         kind,
		Message:      ex.Message,
		Stack:        ex.Stack,
		OriginalCode: originalCode,
		Console:      ex.Console,
		cause:        err,
	}
}

func noComponentError(err *component.NotFoundError, originalCode string, console []sandbox.LogEntry) *Error {
	return &Error{
		Kind:         KindNoComponent,
		Message:      err.Error(),
		OriginalCode: originalCode,
		Candidates:   err.Candidates,
		Console:      console,
		cause:        err,
	}
}
