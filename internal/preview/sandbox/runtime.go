package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps goja VM with security controls
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	vm := goja.New()

	r := &Runtime{
		vm:      vm,
		config:  config,
		console: []LogEntry{},
	}

	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	// Setup global objects
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	return r, nil
}

// VM exposes the underlying runtime. Callers must go through Run while
// executing user code so the timeout and panic guards apply.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Run executes fn against the VM with the configured timeout. Cancelling ctx
// interrupts the VM as well; pass a context without cancellation to let a run
// finish regardless of its caller.
func (r *Runtime) Run(ctx context.Context, fn func(vm *goja.Runtime) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return fmt.Errorf("runtime is closed")
	}

	done := make(chan struct{})
	exited := make(chan struct{})

	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	// Setup interrupt handler
	go func() {
		defer close(exited)
		select {
		case <-timeout:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = recovered(rec)
		}
		close(done)
		<-exited
		r.vm.ClearInterrupt()
	}()

	return fn(r.vm)
}

// Console returns a copy of the captured console output
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry(nil), r.console...)
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	// Timers never fire; rendering is synchronous
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval", "requestAnimationFrame"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}

		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatArg(r.vm, arg))
		}

		r.consoleMu.Lock()
		if r.config.MaxConsole <= 0 || len(r.console) < r.config.MaxConsole {
			r.console = append(r.console, LogEntry{
				Level:   level,
				Message: strings.Join(parts, " "),
				Time:    time.Now(),
			})
		}
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// formatArg renders objects as JSON where possible, like a browser console would.
func formatArg(vm *goja.Runtime, v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return v.String()
	}
	if obj.ClassName() == "Error" {
		return v.String()
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return v.String()
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil || goja.IsUndefined(out) {
		return v.String()
	}
	return out.String()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	return nil
}

// recovered converts a panic from inside the VM into an error.
func recovered(rec any) error {
	switch v := rec.(type) {
	case *goja.Exception:
		return v
	case *goja.InterruptedError:
		return v
	case goja.Value:
		return fmt.Errorf("uncaught %s", v.String())
	case error:
		return fmt.Errorf("sandbox panic: %w", v)
	default:
		return fmt.Errorf("sandbox panic: %v", v)
	}
}
