package react

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/component"
)

// Version reported as React.version
const Version = "18.3.1"

// Element and special-type markers stored under component.TypeofKey.
const (
	ElementTag    = "react.element"
	FragmentTag   = "react.fragment"
	StrictModeTag = "react.strict_mode"
	SuspenseTag   = "react.suspense"
	ContextTag    = "react.context"
	ProviderTag   = "react.provider"
	ConsumerTag   = "react.consumer"
	BoundaryTag   = "preview.error_boundary"
)

// componentPrelude defines the class component base constructors. They are
// plain JS functions so user classes can extend them.
const componentPrelude = `(function () {
	function Component(props, context) {
		this.props = props;
		this.context = context;
		this.state = null;
	}
	function PureComponent(props, context) {
		Component.call(this, props, context);
	}
	PureComponent.prototype = Object.create(Component.prototype);
	PureComponent.prototype.constructor = PureComponent;
	PureComponent.prototype.isPureReactComponent = true;
	return [Component, PureComponent];
})()`

// Hook is one stateful primitive exposed both on React and as an injected
// parameter of the compiled unit.
type Hook struct {
	Name  string
	Value goja.Value
}

// Framework is the React-compatible capability bound into one runtime.
type Framework struct {
	vm *goja.Runtime

	react    *goja.Object
	jsx      *goja.Object
	boundary *goja.Object

	component     *goja.Object
	pureComponent *goja.Object
	fragment      *goja.Object
	hooks         []Hook

	// current is the hook dispatcher of the component being rendered.
	current *dispatcher
	// classes maps live class instances to their fiber.
	classes map[*goja.Object]*instance
	nextID  int
}

// Install builds the framework inside vm.
func Install(vm *goja.Runtime) (*Framework, error) {
	f := &Framework{
		vm:      vm,
		classes: make(map[*goja.Object]*instance),
	}

	if err := f.installComponent(); err != nil {
		return nil, err
	}

	f.fragment = f.marker(FragmentTag)
	f.react = vm.NewObject()
	f.hooks = f.newHooks()

	members := map[string]any{
		"version":        Version,
		"createElement":  f.createElement,
		"cloneElement":   f.cloneElement,
		"isValidElement": f.isValidElement,
		"memo":           f.memo,
		"forwardRef":     f.forwardRef,
		"lazy":           f.lazy,
		"createContext":  f.createContext,
		"Component":      f.component,
		"PureComponent":  f.pureComponent,
		"Fragment":       f.fragment,
		"StrictMode":     f.marker(StrictModeTag),
		"Suspense":       f.marker(SuspenseTag),
		"Children":       f.children(),
	}
	for name, value := range members {
		if err := f.react.Set(name, value); err != nil {
			return nil, errors.Wrapf(err, "failed to set React.%s", name)
		}
	}
	for _, hook := range f.hooks {
		if err := f.react.Set(hook.Name, hook.Value); err != nil {
			return nil, errors.Wrapf(err, "failed to set React.%s", hook.Name)
		}
	}
	if err := f.react.Set("default", f.react); err != nil {
		return nil, err
	}

	f.jsx = vm.NewObject()
	for name, value := range map[string]any{
		"jsx":      f.jsxFactory,
		"jsxs":     f.jsxFactory,
		"jsxDEV":   f.jsxFactory,
		"Fragment": f.fragment,
	} {
		if err := f.jsx.Set(name, value); err != nil {
			return nil, err
		}
	}
	if err := f.jsx.Set("default", f.jsx); err != nil {
		return nil, err
	}

	f.boundary = vm.NewObject()
	errorBoundary := f.marker(BoundaryTag)
	_ = errorBoundary.Set("displayName", "ErrorBoundary")
	if err := f.boundary.Set("ErrorBoundary", errorBoundary); err != nil {
		return nil, err
	}
	if err := f.boundary.Set("default", errorBoundary); err != nil {
		return nil, err
	}

	return f, nil
}

// React returns the framework object
func (f *Framework) React() *goja.Object {
	return f.react
}

// Hooks returns the hook primitives in parameter order
func (f *Framework) Hooks() []Hook {
	return append([]Hook(nil), f.hooks...)
}

// Modules returns the module values keyed by allowed module name
func (f *Framework) Modules() map[string]goja.Value {
	return map[string]goja.Value{
		ModuleReact:         f.react,
		ModuleJSXRuntime:    f.jsx,
		ModuleErrorBoundary: f.boundary,
	}
}

func (f *Framework) installComponent() error {
	v, err := f.vm.RunString(componentPrelude)
	if err != nil {
		return errors.Wrap(err, "failed to define Component")
	}
	pair := v.ToObject(f.vm)
	f.component = pair.Get("0").ToObject(f.vm)
	f.pureComponent = pair.Get("1").ToObject(f.vm)

	proto := f.component.Get("prototype").ToObject(f.vm)
	if err := proto.Set("isReactComponent", f.vm.NewObject()); err != nil {
		return err
	}
	if err := proto.Set("setState", f.setState); err != nil {
		return err
	}
	return proto.Set("forceUpdate", f.forceUpdate)
}

func (f *Framework) marker(tag string) *goja.Object {
	obj := f.vm.NewObject()
	_ = obj.Set(component.TypeofKey, tag)
	return obj
}

// newElement builds an element object.
func (f *Framework) newElement(typ, key, ref goja.Value, props *goja.Object) *goja.Object {
	el := f.vm.NewObject()
	_ = el.Set(component.TypeofKey, ElementTag)
	_ = el.Set("type", typ)
	_ = el.Set("key", key)
	_ = el.Set("ref", ref)
	_ = el.Set("props", props)
	return el
}

func (f *Framework) createElement(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0)
	props := f.vm.NewObject()
	key, ref := f.splitConfig(call.Argument(1), props)

	if n := len(call.Arguments) - 2; n == 1 {
		_ = props.Set("children", call.Arguments[2])
	} else if n > 1 {
		items := make([]any, n)
		for i, child := range call.Arguments[2:] {
			items[i] = child
		}
		_ = props.Set("children", f.vm.NewArray(items...))
	}

	f.applyDefaultProps(typ, props)
	return f.newElement(typ, key, ref, props)
}

// jsxFactory implements the automatic runtime: jsx(type, props, key).
func (f *Framework) jsxFactory(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0)
	props := f.vm.NewObject()
	key, ref := f.splitConfig(call.Argument(1), props)
	if k := call.Argument(2); present(k) {
		key = f.vm.ToValue(k.String())
	}

	f.applyDefaultProps(typ, props)
	return f.newElement(typ, key, ref, props)
}

// splitConfig copies config into props, pulling out key and ref.
func (f *Framework) splitConfig(config goja.Value, props *goja.Object) (goja.Value, goja.Value) {
	key, ref := goja.Null(), goja.Null()
	obj, ok := config.(*goja.Object)
	if !ok {
		return key, ref
	}

	for _, name := range obj.Keys() {
		v := obj.Get(name)
		switch name {
		case "key":
			if present(v) {
				key = f.vm.ToValue(v.String())
			}
		case "ref":
			ref = v
		case "__self", "__source":
		default:
			_ = props.Set(name, v)
		}
	}
	return key, ref
}

func (f *Framework) applyDefaultProps(typ goja.Value, props *goja.Object) {
	obj, ok := typ.(*goja.Object)
	if !ok {
		return
	}
	defaults, ok := obj.Get("defaultProps").(*goja.Object)
	if !ok {
		return
	}
	for _, name := range defaults.Keys() {
		if v := props.Get(name); v == nil || goja.IsUndefined(v) {
			_ = props.Set(name, defaults.Get(name))
		}
	}
}

func (f *Framework) cloneElement(call goja.FunctionCall) goja.Value {
	el, ok := call.Argument(0).(*goja.Object)
	if !ok || component.Tag(el) != ElementTag {
		panic(f.vm.NewTypeError("React.cloneElement(...): The argument must be a React element"))
	}

	props := f.vm.NewObject()
	if old, ok := el.Get("props").(*goja.Object); ok {
		for _, name := range old.Keys() {
			_ = props.Set(name, old.Get(name))
		}
	}

	key, ref := el.Get("key"), el.Get("ref")
	if config, ok := call.Argument(1).(*goja.Object); ok {
		newKey, newRef := f.splitConfig(config, props)
		if present(newKey) {
			key = newKey
		}
		if config.Get("ref") != nil {
			ref = newRef
		}
	}

	if n := len(call.Arguments) - 2; n == 1 {
		_ = props.Set("children", call.Arguments[2])
	} else if n > 1 {
		items := make([]any, n)
		for i, child := range call.Arguments[2:] {
			items[i] = child
		}
		_ = props.Set("children", f.vm.NewArray(items...))
	}

	return f.newElement(el.Get("type"), key, ref, props)
}

func (f *Framework) isValidElement(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	return ok && component.Tag(obj) == ElementTag
}

func (f *Framework) memo(call goja.FunctionCall) goja.Value {
	obj := f.marker(component.MemoTag)
	_ = obj.Set("type", call.Argument(0))
	_ = obj.Set("compare", call.Argument(1))
	return obj
}

func (f *Framework) forwardRef(call goja.FunctionCall) goja.Value {
	if _, ok := goja.AssertFunction(call.Argument(0)); !ok {
		panic(f.vm.NewTypeError("forwardRef requires a render function"))
	}
	obj := f.marker(component.ForwardRefTag)
	_ = obj.Set("render", call.Argument(0))
	return obj
}

func (f *Framework) lazy(call goja.FunctionCall) goja.Value {
	obj := f.marker(component.LazyTag)
	_ = obj.Set("_factory", call.Argument(0))
	return obj
}

func (f *Framework) createContext(call goja.FunctionCall) goja.Value {
	ctx := f.marker(ContextTag)
	_ = ctx.Set("_currentValue", call.Argument(0))

	provider := f.marker(ProviderTag)
	_ = provider.Set("_context", ctx)
	consumer := f.marker(ConsumerTag)
	_ = consumer.Set("_context", ctx)

	_ = ctx.Set("Provider", provider)
	_ = ctx.Set("Consumer", consumer)
	return ctx
}

// children builds React.Children.
func (f *Framework) children() *goja.Object {
	obj := f.vm.NewObject()

	_ = obj.Set("toArray", func(call goja.FunctionCall) goja.Value {
		return f.toArray(f.flatten(call.Argument(0)))
	})
	_ = obj.Set("count", func(call goja.FunctionCall) goja.Value {
		return f.vm.ToValue(len(f.flatten(call.Argument(0))))
	})
	_ = obj.Set("only", func(call goja.FunctionCall) goja.Value {
		if !f.isValidElement(call.Argument(0)) {
			panic(f.vm.NewTypeError("React.Children.only expected to receive a single React element child."))
		}
		return call.Argument(0)
	})
	_ = obj.Set("map", func(call goja.FunctionCall) goja.Value {
		fn := f.mustFunction(call.Argument(1), "React.Children.map")
		items := f.flatten(call.Argument(0))
		out := make([]goja.Value, 0, len(items))
		for i, child := range items {
			v, err := fn(call.Argument(2), child, f.vm.ToValue(i))
			if err != nil {
				f.throw(err)
			}
			out = append(out, v)
		}
		return f.toArray(out)
	})
	_ = obj.Set("forEach", func(call goja.FunctionCall) goja.Value {
		fn := f.mustFunction(call.Argument(1), "React.Children.forEach")
		for i, child := range f.flatten(call.Argument(0)) {
			if _, err := fn(call.Argument(2), child, f.vm.ToValue(i)); err != nil {
				f.throw(err)
			}
		}
		return goja.Undefined()
	})

	return obj
}

// flatten collects renderable children, dropping null, undefined and booleans.
func (f *Framework) flatten(v goja.Value) []goja.Value {
	var out []goja.Value
	var walk func(goja.Value)
	walk = func(v goja.Value) {
		if !present(v) {
			return
		}
		if _, ok := v.Export().(bool); ok {
			return
		}
		if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Array" {
			for _, item := range arrayItems(obj) {
				walk(item)
			}
			return
		}
		out = append(out, v)
	}
	walk(v)
	return out
}

func (f *Framework) toArray(items []goja.Value) goja.Value {
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item
	}
	return f.vm.NewArray(values...)
}

func (f *Framework) mustFunction(v goja.Value, where string) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(f.vm.NewTypeError(where + " expects a function"))
	}
	return fn
}

// throw rethrows err into the calling JS frame.
func (f *Framework) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	panic(f.vm.NewGoError(err))
}

// errorValue converts a render failure into the JS value handed to boundaries.
func (f *Framework) errorValue(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value()
	}
	return f.vm.NewGoError(err)
}

func (f *Framework) newID() string {
	f.nextID++
	return ":r" + strconv.FormatInt(int64(f.nextID), 36) + ":"
}

func arrayItems(obj *goja.Object) []goja.Value {
	n := int(obj.Get("length").ToInteger())
	items := make([]goja.Value, n)
	for i := 0; i < n; i++ {
		items[i] = obj.Get(strconv.Itoa(i))
	}
	return items
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}
