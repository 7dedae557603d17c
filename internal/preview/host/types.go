package host

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
)

// State is the lifecycle state of a Host.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateMounted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateMounted:
		return "mounted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state as its name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for candidate := StateIdle; candidate <= StateFailed; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown host state %q", text)
}

// ErrorKind distinguishes where in the pipeline an attempt failed.
type ErrorKind string

const (
	KindCompile     ErrorKind = "compile"
	KindRuntime     ErrorKind = "runtime"
	KindNoComponent ErrorKind = "no_component"
	KindRender      ErrorKind = "render"
)

// Label is the heading shown above the error panel
func (k ErrorKind) Label() string {
	switch k {
	case KindCompile:
		return "Compile error"
	case KindRuntime:
		return "Runtime error"
	case KindNoComponent:
		return "No component found"
	case KindRender:
		return "Render error"
	default:
		return "Error"
	}
}

// ErrorInfo is the content of the error panel.
type ErrorInfo struct {
	Kind         ErrorKind `json:"kind"`
	Label        string    `json:"label"`
	Message      string    `json:"message"`
	Stack        string    `json:"stack,omitempty"`
	OriginalCode string    `json:"originalCode,omitempty"`

	// Console is console output captured before the failure.
	Console []sandbox.LogEntry `json:"-"`
}

// View is one rendering of the mount point.
type View struct {
	State    State              `json:"state"`
	HTML     string             `json:"html,omitempty"`
	Error    *ErrorInfo         `json:"error,omitempty"`
	Console  []sandbox.LogEntry `json:"console,omitempty"`
	Fallback string             `json:"fallback,omitempty"`
	Height   string             `json:"height,omitempty"`
	Revision uint64             `json:"revision"`
}

// Mounted is a component mounted by a successful pipeline run.
type Mounted interface {
	HTML() string
	Console() []sandbox.LogEntry
	Unmount() error
}

// Pipeline turns source into a mounted component.
type Pipeline interface {
	Run(ctx context.Context, source string) (Mounted, error)
}

// Describer is implemented by pipeline errors that know their kind.
type Describer interface {
	Describe() ErrorInfo
}

// Target receives every view the host produces. Render is called with the
// host lock held and must not call back into the Host.
type Target interface {
	Render(view View)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(view View)

// Render calls f(view)
func (f TargetFunc) Render(view View) {
	f(view)
}

// Options configures a Host.
type Options struct {
	Debounce time.Duration
	Fallback string
	Height   string
}

// DefaultOptions returns the default host options
func DefaultOptions() Options {
	return Options{
		Debounce: 300 * time.Millisecond,
		Fallback: "Loading preview...",
	}
}
