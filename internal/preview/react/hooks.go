package react

import (
	"github.com/dop251/goja"
)

// hookSlot is the persisted state of one hook call site.
type hookSlot struct {
	value   goja.Value
	reducer goja.Value
	setter  goja.Value
	deps    []goja.Value
	hasDeps bool
	cleanup goja.Value
}

// dispatcher tracks hook order while one component renders.
type dispatcher struct {
	root  *Root
	inst  *instance
	index int
}

func (d *dispatcher) next() (*hookSlot, bool) {
	if d.index < len(d.inst.hooks) {
		slot := d.inst.hooks[d.index]
		d.index++
		return slot, false
	}
	slot := &hookSlot{}
	d.inst.hooks = append(d.inst.hooks, slot)
	d.index++
	return slot, true
}

func (f *Framework) newHooks() []Hook {
	return []Hook{
		{Name: "useState", Value: f.vm.ToValue(f.useState)},
		{Name: "useReducer", Value: f.vm.ToValue(f.useReducer)},
		{Name: "useEffect", Value: f.vm.ToValue(f.effectHook(false))},
		{Name: "useLayoutEffect", Value: f.vm.ToValue(f.effectHook(true))},
		{Name: "useMemo", Value: f.vm.ToValue(f.useMemo)},
		{Name: "useCallback", Value: f.vm.ToValue(f.useCallback)},
		{Name: "useRef", Value: f.vm.ToValue(f.useRef)},
		{Name: "useContext", Value: f.vm.ToValue(f.useContext)},
		{Name: "useId", Value: f.vm.ToValue(f.useID)},
	}
}

func (f *Framework) dispatcherFor(hook string) *dispatcher {
	if f.current == nil {
		panic(f.vm.NewTypeError("Invalid hook call: " + hook + " can only be called inside the body of a function component."))
	}
	return f.current
}

func (f *Framework) useState(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useState")
	slot, fresh := d.next()
	if fresh {
		initial := call.Argument(0)
		if fn, ok := goja.AssertFunction(initial); ok {
			v, err := fn(goja.Undefined())
			if err != nil {
				f.throw(err)
			}
			initial = v
		}
		slot.value = initial
		inst := d.inst
		slot.setter = f.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			f.dispatch(inst, slot, call.Argument(0), false)
			return goja.Undefined()
		})
	}
	return f.vm.NewArray(slot.value, slot.setter)
}

func (f *Framework) useReducer(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useReducer")
	slot, fresh := d.next()
	slot.reducer = call.Argument(0)
	if fresh {
		initial := call.Argument(1)
		if init, ok := goja.AssertFunction(call.Argument(2)); ok {
			v, err := init(goja.Undefined(), initial)
			if err != nil {
				f.throw(err)
			}
			initial = v
		}
		slot.value = initial
		inst := d.inst
		slot.setter = f.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			f.dispatch(inst, slot, call.Argument(0), true)
			return goja.Undefined()
		})
	}
	return f.vm.NewArray(slot.value, slot.setter)
}

// dispatch applies a state update and schedules a re-render when the value
// actually changed (Object.is semantics).
func (f *Framework) dispatch(inst *instance, slot *hookSlot, action goja.Value, reduce bool) {
	if inst.unmounted {
		return
	}

	next := action
	if reduce {
		reducer, ok := goja.AssertFunction(slot.reducer)
		if !ok {
			panic(f.vm.NewTypeError("useReducer requires a reducer function"))
		}
		v, err := reducer(goja.Undefined(), slot.value, action)
		if err != nil {
			f.throw(err)
		}
		next = v
	} else if fn, ok := goja.AssertFunction(action); ok {
		v, err := fn(goja.Undefined(), slot.value)
		if err != nil {
			f.throw(err)
		}
		next = v
	}

	if slot.value != nil && next.SameAs(slot.value) {
		return
	}
	slot.value = next
	inst.root.markDirty()
}

func (f *Framework) effectHook(layout bool) func(goja.FunctionCall) goja.Value {
	name := "useEffect"
	if layout {
		name = "useLayoutEffect"
	}
	return func(call goja.FunctionCall) goja.Value {
		d := f.dispatcherFor(name)
		slot, fresh := d.next()
		effect := f.mustFunction(call.Argument(0), name)

		deps, hasDeps := f.depsOf(call.Argument(1))
		if fresh || !hasDeps || !slot.hasDeps || !sameDeps(slot.deps, deps) {
			slot.deps, slot.hasDeps = deps, hasDeps
			d.root.queueEffect(&pendingEffect{slot: slot, run: effect, layout: layout, inst: d.inst})
		}
		return goja.Undefined()
	}
}

func (f *Framework) useMemo(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useMemo")
	slot, fresh := d.next()
	compute := f.mustFunction(call.Argument(0), "useMemo")

	deps, hasDeps := f.depsOf(call.Argument(1))
	if fresh || !hasDeps || !sameDeps(slot.deps, deps) {
		v, err := compute(goja.Undefined())
		if err != nil {
			f.throw(err)
		}
		slot.value, slot.deps, slot.hasDeps = v, deps, hasDeps
	}
	return slot.value
}

func (f *Framework) useCallback(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useCallback")
	slot, fresh := d.next()

	deps, hasDeps := f.depsOf(call.Argument(1))
	if fresh || !hasDeps || !sameDeps(slot.deps, deps) {
		slot.value, slot.deps, slot.hasDeps = call.Argument(0), deps, hasDeps
	}
	return slot.value
}

func (f *Framework) useRef(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useRef")
	slot, fresh := d.next()
	if fresh {
		ref := f.vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		slot.value = ref
	}
	return slot.value
}

func (f *Framework) useContext(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useContext")
	ctx, ok := call.Argument(0).(*goja.Object)
	if !ok {
		panic(f.vm.NewTypeError("useContext requires a context object"))
	}
	return d.root.contextValue(ctx)
}

func (f *Framework) useID(call goja.FunctionCall) goja.Value {
	d := f.dispatcherFor("useId")
	slot, fresh := d.next()
	if fresh {
		slot.value = f.vm.ToValue(f.newID())
	}
	return slot.value
}

// depsOf reads a dependency array; hasDeps is false when none was passed.
func (f *Framework) depsOf(v goja.Value) ([]goja.Value, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, false
	}
	return arrayItems(obj), true
}

func sameDeps(prev, next []goja.Value) bool {
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if !prev[i].SameAs(next[i]) {
			return false
		}
	}
	return true
}
