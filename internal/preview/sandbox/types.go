package sandbox

import (
	"time"

	"github.com/dop251/goja"
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Execution timeout per guarded run
	MaxCallStackSize int           // JS call stack depth limit
	EnableConsole    bool          // Capture console.log/warn/error/info/debug
	MaxConsole       int           // Maximum retained console entries
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`   // log, warn, error, info, debug
	Message string    `json:"message"` // Log message
	Time    time.Time `json:"time"`    // Timestamp
}

// Binding is one named value handed to the compiled unit.
type Binding struct {
	Name  string
	Value goja.Value
}

// Capabilities is the capability set installed into one runtime.
type Capabilities struct {
	// Framework is passed as the first parameter of the compiled unit.
	Framework Binding
	// Hooks follow exports, module and require in the parameter list.
	Hooks []Binding
	// Modules maps allowed module names to their values in this runtime.
	Modules map[string]goja.Value
	// Handle is returned to the caller untouched.
	Handle any
}

// Installer builds a fresh capability set inside vm.
type Installer func(vm *goja.Runtime) (*Capabilities, error)

// ModuleSpec describes one importable module.
type ModuleSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Exports     []string `json:"exports"`
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
		MaxConsole:       500,
	}
}
