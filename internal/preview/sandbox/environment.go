package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
)

// Table is the allow-list of importable modules. It is built once and never
// mutated, so one Table can back any number of concurrent evaluations.
type Table struct {
	specs map[string]ModuleSpec
	names []string
}

// NewTable builds a table from module specs
func NewTable(specs ...ModuleSpec) (*Table, error) {
	t := &Table{specs: make(map[string]ModuleSpec, len(specs))}
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, errors.New("module spec has an empty name")
		}
		if _, dup := t.specs[spec.Name]; dup {
			return nil, errors.Newf("module %q registered twice", spec.Name)
		}
		spec.Exports = append([]string(nil), spec.Exports...)
		t.specs[spec.Name] = spec
		t.names = append(t.names, spec.Name)
	}
	sort.Strings(t.names)
	return t, nil
}

// Lookup returns the spec registered under name
func (t *Table) Lookup(name string) (ModuleSpec, bool) {
	spec, ok := t.specs[name]
	return spec, ok
}

// Names returns the allowed module names in sorted order
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Specs returns every module spec in name order
func (t *Table) Specs() []ModuleSpec {
	out := make([]ModuleSpec, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.specs[name])
	}
	return out
}

// ModuleNotAllowedError is thrown by require for names outside the table.
type ModuleNotAllowedError struct {
	Name string
}

func (e *ModuleNotAllowedError) Error() string {
	return fmt.Sprintf("Module %q is not allowed in preview environment", e.Name)
}

// Environment is the module/exports/require triple of one evaluation.
type Environment struct {
	Module  *goja.Object
	Exports *goja.Object
	Require goja.Value

	vm       *goja.Runtime
	table    *Table
	caps     *Capabilities
	resolved map[string]goja.Value
}

// NewEnvironment creates a fresh environment bound to vm. Nothing in it is
// shared with any other evaluation.
func NewEnvironment(vm *goja.Runtime, table *Table, caps *Capabilities) *Environment {
	env := &Environment{
		vm:       vm,
		table:    table,
		caps:     caps,
		resolved: make(map[string]goja.Value),
	}

	env.Exports = vm.NewObject()
	env.Module = vm.NewObject()
	_ = env.Module.Set("exports", env.Exports)
	env.Require = vm.ToValue(env.require)

	return env
}

// Resolve returns the value bound to name, or an error when name is not in
// the allow-list.
func (e *Environment) Resolve(name string) (goja.Value, error) {
	if v, ok := e.resolved[name]; ok {
		return v, nil
	}

	if _, ok := e.table.Lookup(name); !ok {
		return nil, errors.WithHintf(&ModuleNotAllowedError{Name: name},
			"allowed modules: %s", strings.Join(e.table.Names(), ", "))
	}

	v, ok := e.caps.Modules[name]
	if !ok || v == nil {
		return nil, errors.Newf("module %q is allowed but has no binding", name)
	}

	e.resolved[name] = v
	return v, nil
}

func (e *Environment) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	v, err := e.Resolve(name)
	if err != nil {
		panic(e.vm.NewGoError(err))
	}
	return v
}
