package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// unitName is the file name reported in stack traces.
const unitName = "preview.js"

// Evaluation is the outcome of running one compiled unit.
type Evaluation struct {
	Runtime      *Runtime
	Environment  *Environment
	Capabilities *Capabilities
	Exports      goja.Value
	Duration     time.Duration
}

// Exception is a throw raised while compiling or invoking the unit.
type Exception struct {
	Message string
	Stack   string
	Console []LogEntry
	cause   error
}

func (e *Exception) Error() string {
	return e.Message
}

func (e *Exception) Unwrap() error {
	return e.cause
}

// Evaluator compiles transpiled code into a callable bound to the injected
// capability set and invokes it once.
type Evaluator struct {
	table   *Table
	install Installer
	config  Config
	logger  *zap.Logger
}

// NewEvaluator creates an evaluator. The table and installer are fixed for
// the evaluator's lifetime.
func NewEvaluator(table *Table, install Installer, config Config, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		table:   table,
		install: install,
		config:  config,
		logger:  logger,
	}
}

// Table returns the allow-list the evaluator links against
func (e *Evaluator) Table() *Table {
	return e.table
}

// Evaluate runs code in a fresh runtime with a fresh module environment and
// returns the resulting module.exports.
func (e *Evaluator) Evaluate(ctx context.Context, code string) (*Evaluation, error) {
	rt, err := New(e.config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create runtime")
	}

	caps, err := e.install(rt.VM())
	if err != nil {
		return nil, errors.Wrap(err, "failed to install capabilities")
	}

	env := NewEnvironment(rt.VM(), e.table, caps)
	source := wrap(Parameters(caps), code)

	start := time.Now()
	var exports goja.Value
	err = rt.Run(ctx, func(vm *goja.Runtime) error {
		program, err := goja.Compile(unitName, source, false)
		if err != nil {
			return err
		}

		unit, err := vm.RunProgram(program)
		if err != nil {
			return err
		}
		call, ok := goja.AssertFunction(unit)
		if !ok {
			return errors.New("compiled unit is not callable")
		}

		args := make([]goja.Value, 0, 4+len(caps.Hooks))
		args = append(args, caps.Framework.Value, env.Exports, env.Module, env.Require)
		for _, hook := range caps.Hooks {
			args = append(args, hook.Value)
		}

		if _, err := call(goja.Undefined(), args...); err != nil {
			return err
		}

		exports = env.Module.Get("exports")
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		ex := NewException(err)
		ex.Console = rt.Console()
		e.logger.Debug("evaluation threw",
			zap.String("message", ex.Message),
			zap.Duration("duration", duration))
		return nil, ex
	}

	e.logger.Debug("evaluation complete", zap.Duration("duration", duration))

	return &Evaluation{
		Runtime:      rt,
		Environment:  env,
		Capabilities: caps,
		Exports:      exports,
		Duration:     duration,
	}, nil
}

// Parameters returns the parameter list of the compiled unit in order.
func Parameters(caps *Capabilities) []string {
	params := []string{caps.Framework.Name, "exports", "module", "require"}
	for _, hook := range caps.Hooks {
		params = append(params, hook.Name)
	}
	return params
}

func wrap(params []string, code string) string {
	var b strings.Builder
	b.WriteString("(function (")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") {\n")
	b.WriteString(code)
	b.WriteString("\n})")
	return b.String()
}

// NewException converts any error raised inside the VM into an Exception
// carrying the original message and the JS stack when one exists.
func NewException(err error) *Exception {
	var existing *Exception
	if errors.As(err, &existing) {
		return existing
	}

	ex := &Exception{Message: err.Error(), cause: err}

	var jsErr *goja.Exception
	var interrupted *goja.InterruptedError
	var syntaxErr *goja.CompilerSyntaxError
	switch {
	case errors.As(err, &interrupted):
		ex.Message = fmt.Sprint(interrupted.Value())
		ex.Stack = interrupted.String()
	case errors.As(err, &syntaxErr):
		ex.Message = "SyntaxError: " + syntaxErr.Error()
	case errors.As(err, &jsErr):
		ex.Message, ex.Stack = describeThrown(jsErr)
	}
	return ex
}

func describeThrown(jsErr *goja.Exception) (string, string) {
	stack := jsErr.String()
	obj, ok := jsErr.Value().(*goja.Object)
	if !ok {
		return jsErr.Value().String(), stack
	}

	message := obj.String()
	if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
		message = msg.String()
		if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) && name.String() != "" {
			label := name.String()
			if label == "GoError" {
				label = "Error"
			}
			message = label + ": " + message
		}
	}
	if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) && s.String() != "" {
		stack = s.String()
	}
	return message, stack
}
