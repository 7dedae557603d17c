package react

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/component"
)

// maxPasses bounds render passes triggered by state updates during render or
// commit.
const maxPasses = 25

// ErrTooManyRenders is returned when state keeps changing after maxPasses.
var ErrTooManyRenders = errors.New("Too many re-renders. React limits the number of renders to prevent an infinite loop.")

// instance is the persisted state of one mounted composite component.
type instance struct {
	root *Root
	path string
	typ  goja.Value

	hooks []*hookSlot

	// class components
	obj         *goja.Object
	pending     []goja.Value
	forced      bool
	prevProps   goja.Value
	prevState   goja.Value
	needsMount  bool
	needsUpdate bool

	// ErrorBoundary helper
	failure goja.Value

	seen      bool
	committed bool
	unmounted bool
}

type pendingEffect struct {
	inst   *instance
	slot   *hookSlot
	run    goja.Callable
	layout bool
}

type contextFrame struct {
	ctx   *goja.Object
	value goja.Value
}

// Root mounts one element tree and renders it to HTML.
type Root struct {
	fw        *Framework
	element   *goja.Object
	instances map[string]*instance
	effects   []*pendingEffect
	lifecycle []*instance
	contexts  []contextFrame
	dirty     bool
	passes    int
	html      string
	unmounted bool
}

// NewRoot creates a root rendering typ with props. props may be nil.
func (f *Framework) NewRoot(typ goja.Value, props map[string]any) *Root {
	p := f.vm.NewObject()
	for k, v := range props {
		_ = p.Set(k, v)
	}
	f.applyDefaultProps(typ, p)

	return &Root{
		fw:        f,
		element:   f.newElement(typ, goja.Null(), goja.Null(), p),
		instances: make(map[string]*instance),
	}
}

// Render renders the tree, commits effects and lifecycles, and repeats while
// state keeps changing. Errors that escape every boundary are returned.
func (r *Root) Render() (string, error) {
	if r.unmounted {
		return "", errors.New("root is unmounted")
	}

	for pass := 0; ; pass++ {
		if pass >= maxPasses {
			return "", ErrTooManyRenders
		}
		r.dirty = false
		r.passes++

		html, err := r.renderPass()
		if err != nil {
			return "", err
		}
		if err := r.commit(); err != nil {
			return "", err
		}
		r.html = html

		if !r.dirty {
			return html, nil
		}
	}
}

// HTML returns the output of the last successful render
func (r *Root) HTML() string {
	return r.html
}

// Passes returns the number of render passes performed so far
func (r *Root) Passes() int {
	return r.passes
}

// Unmount runs every effect cleanup and componentWillUnmount. The first
// error is returned after all cleanups ran.
func (r *Root) Unmount() error {
	if r.unmounted {
		return nil
	}
	r.unmounted = true

	var first error
	for _, inst := range r.sortedInstances() {
		if err := r.destroy(inst); err != nil && first == nil {
			first = err
		}
	}
	r.instances = map[string]*instance{}
	return first
}

func (r *Root) markDirty() {
	r.dirty = true
}

func (r *Root) queueEffect(e *pendingEffect) {
	r.effects = append(r.effects, e)
}

func (r *Root) renderPass() (string, error) {
	for _, inst := range r.instances {
		inst.seen = false
	}
	r.effects = r.effects[:0]
	r.lifecycle = r.lifecycle[:0]
	r.contexts = r.contexts[:0]

	var b strings.Builder
	if err := r.renderNode(&b, r.element, "0"); err != nil {
		return "", err
	}

	for _, inst := range r.sortedInstances() {
		if !inst.seen {
			if err := r.destroy(inst); err != nil {
				return "", err
			}
			delete(r.instances, inst.path)
		}
	}
	return b.String(), nil
}

// commit flushes layout effects, passive effects, then class lifecycles.
func (r *Root) commit() error {
	effects := append([]*pendingEffect(nil), r.effects...)
	lifecycle := append([]*instance(nil), r.lifecycle...)
	r.effects = r.effects[:0]
	r.lifecycle = r.lifecycle[:0]

	for _, inst := range r.instances {
		inst.committed = true
	}

	for _, layout := range []bool{true, false} {
		for _, e := range effects {
			if e.layout != layout || e.inst.unmounted {
				continue
			}
			if err := r.runEffect(e); err != nil {
				return err
			}
		}
	}

	for _, inst := range lifecycle {
		if inst.unmounted {
			continue
		}
		if err := r.runLifecycle(inst); err != nil {
			return err
		}
	}
	return nil
}

func (r *Root) runEffect(e *pendingEffect) error {
	if err := r.runCleanup(e.slot); err != nil {
		return err
	}
	res, err := e.run(goja.Undefined())
	if err != nil {
		return err
	}
	if _, ok := goja.AssertFunction(res); ok {
		e.slot.cleanup = res
	}
	return nil
}

func (r *Root) runCleanup(slot *hookSlot) error {
	cleanup, ok := goja.AssertFunction(slot.cleanup)
	slot.cleanup = nil
	if !ok {
		return nil
	}
	_, err := cleanup(goja.Undefined())
	return err
}

func (r *Root) runLifecycle(inst *instance) error {
	switch {
	case inst.needsMount:
		inst.needsMount = false
		return r.callMethod(inst.obj, "componentDidMount")
	case inst.needsUpdate:
		inst.needsUpdate = false
		return r.callMethod(inst.obj, "componentDidUpdate", inst.prevProps, inst.prevState)
	}
	return nil
}

// destroy unmounts one instance: hook cleanups, then componentWillUnmount.
func (r *Root) destroy(inst *instance) error {
	if inst.unmounted {
		return nil
	}
	inst.unmounted = true

	var first error
	if inst.committed {
		for _, slot := range inst.hooks {
			if err := r.runCleanup(slot); err != nil && first == nil {
				first = err
			}
		}
		if inst.obj != nil {
			if err := r.callMethod(inst.obj, "componentWillUnmount"); err != nil && first == nil {
				first = err
			}
		}
	}
	if inst.obj != nil {
		delete(r.fw.classes, inst.obj)
	}
	return first
}

// dropSubtree discards instances created under path during a failed render.
func (r *Root) dropSubtree(path string, effects, lifecycle int) {
	r.effects = r.effects[:effects]
	r.lifecycle = r.lifecycle[:lifecycle]

	prefix := path + "/"
	for p, inst := range r.instances {
		if p == path || strings.HasPrefix(p, prefix) {
			if !inst.committed {
				if inst.obj != nil {
					delete(r.fw.classes, inst.obj)
				}
				inst.unmounted = true
				delete(r.instances, p)
				continue
			}
			inst.seen = false
		}
	}
}

// sortedInstances orders instances children-first for teardown.
func (r *Root) sortedInstances() []*instance {
	out := make([]*instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		return len(out[i].path) > len(out[j].path) ||
			(len(out[i].path) == len(out[j].path) && out[i].path < out[j].path)
	})
	return out
}

// instanceAt returns the instance for path, replacing it when the type
// changed.
func (r *Root) instanceAt(path string, typ goja.Value) (*instance, error) {
	if inst, ok := r.instances[path]; ok {
		if inst.typ.SameAs(typ) {
			inst.seen = true
			return inst, nil
		}
		if err := r.destroy(inst); err != nil {
			return nil, err
		}
	}

	inst := &instance{root: r, path: path, typ: typ, seen: true}
	r.instances[path] = inst
	return inst, nil
}

func (r *Root) renderNode(b *strings.Builder, node goja.Value, path string) error {
	if !present(node) {
		return nil
	}

	obj, ok := node.(*goja.Object)
	if !ok {
		switch v := node.Export().(type) {
		case bool:
			return nil
		case string:
			b.WriteString(escapeText(v))
		default:
			b.WriteString(escapeText(node.String()))
		}
		return nil
	}

	if obj.ClassName() == "Array" {
		for i, child := range arrayItems(obj) {
			if err := r.renderNode(b, child, path+"/"+childKey(child, i)); err != nil {
				return err
			}
		}
		return nil
	}

	if component.Tag(obj) == ElementTag {
		return r.renderElement(b, obj, path)
	}

	if _, isFn := goja.AssertFunction(obj); isFn {
		return errors.New("Functions are not valid as a React child. This may happen if you return a Component instead of <Component /> from render.")
	}
	return errors.Newf("Objects are not valid as a React child (found: object with keys {%s}). If you meant to render a collection of children, use an array instead.",
		strings.Join(obj.Keys(), ", "))
}

func childKey(child goja.Value, index int) string {
	if obj, ok := child.(*goja.Object); ok && component.Tag(obj) == ElementTag {
		if key := obj.Get("key"); present(key) {
			return "$" + key.String()
		}
	}
	return strconv.Itoa(index)
}

func (r *Root) renderElement(b *strings.Builder, el *goja.Object, path string) error {
	typ := el.Get("type")
	props, ok := el.Get("props").(*goja.Object)
	if !ok {
		props = r.fw.vm.NewObject()
	}

	if tag, ok := typ.Export().(string); ok && !isObject(typ) {
		return r.renderHost(b, tag, props, path)
	}

	typObj, ok := typ.(*goja.Object)
	if !ok {
		return invalidType(typ)
	}

	switch component.Tag(typObj) {
	case FragmentTag, StrictModeTag, SuspenseTag:
		return r.renderNode(b, props.Get("children"), path)
	case ProviderTag:
		return r.renderProvider(b, typObj, props, path)
	case ConsumerTag:
		return r.renderConsumer(b, typObj, props, path)
	case BoundaryTag:
		return r.renderBoundary(b, typ, props, path)
	}

	shape, reason := component.Classify(typ)
	switch shape {
	case component.ShapeFunction:
		fn, _ := goja.AssertFunction(typ)
		return r.renderFunction(b, typ, path, func() (goja.Value, error) {
			return fn(goja.Undefined(), props)
		})
	case component.ShapeClass:
		return r.renderClass(b, typObj, props, el.Get("ref"), path)
	case component.ShapeMemo:
		inner := r.fw.newElement(typObj.Get("type"), el.Get("key"), el.Get("ref"), props)
		return r.renderElement(b, inner, path)
	case component.ShapeForwardRef:
		render, ok := goja.AssertFunction(typObj.Get("render"))
		if !ok {
			return errors.New("forwardRef render is not a function")
		}
		ref := el.Get("ref")
		if ref == nil {
			ref = goja.Null()
		}
		return r.renderFunction(b, typ, path, func() (goja.Value, error) {
			return render(goja.Undefined(), props, ref)
		})
	case component.ShapeLazy:
		resolved, err := r.resolveLazy(typObj)
		if err != nil {
			return err
		}
		inner := r.fw.newElement(resolved, el.Get("key"), el.Get("ref"), props)
		return r.renderElement(b, inner, path)
	}

	return errors.Newf("Element type is invalid: %s", reason)
}

func (r *Root) renderFunction(b *strings.Builder, typ goja.Value, path string, call func() (goja.Value, error)) error {
	inst, err := r.instanceAt(path, typ)
	if err != nil {
		return err
	}

	prev := r.fw.current
	r.fw.current = &dispatcher{root: r, inst: inst}
	out, err := call()
	r.fw.current = prev
	if err != nil {
		return err
	}

	return r.renderNode(b, out, path+"/0")
}

func (r *Root) renderClass(b *strings.Builder, typ *goja.Object, props *goja.Object, ref goja.Value, path string) error {
	inst, err := r.instanceAt(path, typ)
	if err != nil {
		return err
	}
	vm := r.fw.vm

	if inst.obj == nil {
		obj, err := vm.New(typ, props)
		if err != nil {
			return err
		}
		_ = obj.Set("props", props)
		inst.obj = obj
		inst.needsMount = true
		r.fw.classes[obj] = inst
		if err := r.deriveState(typ, inst, props, classState(obj)); err != nil {
			return err
		}
		if refObj, ok := ref.(*goja.Object); ok {
			_ = refObj.Set("current", obj)
		}
	} else {
		prevProps, prevState := inst.obj.Get("props"), classState(inst.obj)
		next, err := r.applyPending(inst, prevState, props)
		if err != nil {
			return err
		}
		_ = inst.obj.Set("state", next)
		if err := r.deriveState(typ, inst, props, next); err != nil {
			return err
		}
		_ = inst.obj.Set("props", props)
		inst.prevProps, inst.prevState = prevProps, prevState
		inst.needsUpdate = true
	}
	if inst.needsMount || inst.needsUpdate {
		r.lifecycle = append(r.lifecycle, inst)
	}

	if ctxType, ok := typ.Get("contextType").(*goja.Object); ok {
		_ = inst.obj.Set("context", r.contextValue(ctxType))
	}

	if !isErrorBoundaryClass(typ, inst.obj) {
		return r.renderClassBody(b, inst, path)
	}

	// Class error boundary: render into a scratch buffer, recover once.
	var scratch strings.Builder
	effects, lifecycle := len(r.effects), len(r.lifecycle)
	err = r.renderClassBody(&scratch, inst, path)
	if err == nil {
		b.WriteString(scratch.String())
		return nil
	}
	r.dropSubtree(path+"/0", effects, lifecycle)
	if err := r.catchInClass(typ, inst, err); err != nil {
		return err
	}
	return r.renderClassBody(b, inst, path)
}

func (r *Root) renderClassBody(b *strings.Builder, inst *instance, path string) error {
	render, ok := goja.AssertFunction(inst.obj.Get("render"))
	if !ok {
		return errors.New("class component has no render method")
	}
	out, err := render(inst.obj)
	if err != nil {
		return err
	}
	return r.renderNode(b, out, path+"/0")
}

func (r *Root) catchInClass(typ *goja.Object, inst *instance, cause error) error {
	errValue := r.fw.errorValue(cause)

	if derive, ok := goja.AssertFunction(typ.Get("getDerivedStateFromError")); ok {
		partial, err := derive(typ, errValue)
		if err != nil {
			return err
		}
		_ = inst.obj.Set("state", r.merge(classState(inst.obj), partial))
	}
	info := r.fw.vm.NewObject()
	_ = info.Set("componentStack", "")
	return r.callMethod(inst.obj, "componentDidCatch", errValue, info)
}

func isErrorBoundaryClass(typ, obj *goja.Object) bool {
	if _, ok := goja.AssertFunction(typ.Get("getDerivedStateFromError")); ok {
		return true
	}
	_, ok := goja.AssertFunction(obj.Get("componentDidCatch"))
	return ok
}

// applyPending folds queued setState calls into the next state.
func (r *Root) applyPending(inst *instance, state, props goja.Value) (goja.Value, error) {
	queue := inst.pending
	inst.pending = nil
	inst.forced = false

	for _, partial := range queue {
		if fn, ok := goja.AssertFunction(partial); ok {
			v, err := fn(inst.obj, state, props)
			if err != nil {
				return nil, err
			}
			partial = v
		}
		state = r.merge(state, partial)
	}
	return state, nil
}

func (r *Root) deriveState(typ *goja.Object, inst *instance, props, state goja.Value) error {
	derive, ok := goja.AssertFunction(typ.Get("getDerivedStateFromProps"))
	if !ok {
		return nil
	}
	partial, err := derive(typ, props, state)
	if err != nil {
		return err
	}
	if present(partial) {
		_ = inst.obj.Set("state", r.merge(state, partial))
	}
	return nil
}

// merge shallow-merges partial into a copy of state.
func (r *Root) merge(state, partial goja.Value) goja.Value {
	if !present(partial) {
		return state
	}
	out := r.fw.vm.NewObject()
	if s, ok := state.(*goja.Object); ok {
		for _, k := range s.Keys() {
			_ = out.Set(k, s.Get(k))
		}
	}
	if p, ok := partial.(*goja.Object); ok {
		for _, k := range p.Keys() {
			_ = out.Set(k, p.Get(k))
		}
	}
	return out
}

func classState(obj *goja.Object) goja.Value {
	state := obj.Get("state")
	if state == nil {
		return goja.Null()
	}
	return state
}

func (r *Root) callMethod(obj *goja.Object, name string, args ...goja.Value) error {
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return nil
	}
	_, err := fn(obj, args...)
	return err
}

func (r *Root) renderProvider(b *strings.Builder, provider, props *goja.Object, path string) error {
	ctx, ok := provider.Get("_context").(*goja.Object)
	if !ok {
		return errors.New("context provider is missing its context")
	}
	value := props.Get("value")
	if value == nil {
		value = goja.Undefined()
	}

	r.contexts = append(r.contexts, contextFrame{ctx: ctx, value: value})
	err := r.renderNode(b, props.Get("children"), path+"/0")
	r.contexts = r.contexts[:len(r.contexts)-1]
	return err
}

func (r *Root) renderConsumer(b *strings.Builder, consumer, props *goja.Object, path string) error {
	ctx, ok := consumer.Get("_context").(*goja.Object)
	if !ok {
		return errors.New("context consumer is missing its context")
	}
	fn, ok := goja.AssertFunction(props.Get("children"))
	if !ok {
		return errors.New("A context consumer was rendered with multiple children, or a child that isn't a function.")
	}
	out, err := fn(goja.Undefined(), r.contextValue(ctx))
	if err != nil {
		return err
	}
	return r.renderNode(b, out, path+"/0")
}

func (r *Root) contextValue(ctx *goja.Object) goja.Value {
	for i := len(r.contexts) - 1; i >= 0; i-- {
		if r.contexts[i].ctx == ctx {
			return r.contexts[i].value
		}
	}
	if v := ctx.Get("_currentValue"); v != nil {
		return v
	}
	return goja.Undefined()
}

// renderBoundary implements the ErrorBoundary component of
// react-error-boundary.
func (r *Root) renderBoundary(b *strings.Builder, typ goja.Value, props *goja.Object, path string) error {
	inst, err := r.instanceAt(path, typ)
	if err != nil {
		return err
	}

	if inst.failure == nil {
		var scratch strings.Builder
		effects, lifecycle := len(r.effects), len(r.lifecycle)
		err := r.renderNode(&scratch, props.Get("children"), path+"/0")
		if err == nil {
			b.WriteString(scratch.String())
			return nil
		}
		r.dropSubtree(path+"/0", effects, lifecycle)

		inst.failure = r.fw.errorValue(err)
		if onError, ok := goja.AssertFunction(props.Get("onError")); ok {
			info := r.fw.vm.NewObject()
			_ = info.Set("componentStack", "")
			if _, err := onError(goja.Undefined(), inst.failure, info); err != nil {
				return err
			}
		}
	}

	return r.renderFallback(b, inst, props, path)
}

func (r *Root) renderFallback(b *strings.Builder, inst *instance, props *goja.Object, path string) error {
	vm := r.fw.vm
	fallbackProps := vm.NewObject()
	_ = fallbackProps.Set("error", inst.failure)
	_ = fallbackProps.Set("resetErrorBoundary", func(call goja.FunctionCall) goja.Value {
		if inst.failure != nil {
			inst.failure = nil
			r.markDirty()
		}
		return goja.Undefined()
	})

	fallbackPath := path + "/fallback"
	if render, ok := goja.AssertFunction(props.Get("fallbackRender")); ok {
		out, err := render(goja.Undefined(), fallbackProps)
		if err != nil {
			return err
		}
		return r.renderNode(b, out, fallbackPath)
	}
	if fc := props.Get("FallbackComponent"); present(fc) {
		el := r.fw.newElement(fc, goja.Null(), goja.Null(), fallbackProps)
		return r.renderNode(b, el, fallbackPath)
	}
	if fallback := props.Get("fallback"); fallback != nil && !goja.IsUndefined(fallback) {
		return r.renderNode(b, fallback, fallbackPath)
	}

	return errors.Newf("ErrorBoundary requires a fallback, fallbackRender, or FallbackComponent prop: %s", inst.failure.String())
}

// resolveLazy loads a lazy component synchronously. The factory may return a
// module object or an already settled promise.
func (r *Root) resolveLazy(lazy *goja.Object) (goja.Value, error) {
	if cached := lazy.Get("_result"); present(cached) {
		return cached, nil
	}

	factory, ok := goja.AssertFunction(lazy.Get("_factory"))
	if !ok {
		return nil, errors.New("lazy: factory is not a function")
	}
	out, err := factory(goja.Undefined())
	if err != nil {
		return nil, err
	}

	module := out
	if promise, ok := out.Export().(*goja.Promise); ok {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			module = promise.Result()
		case goja.PromiseStateRejected:
			return nil, errors.Newf("lazy: failed to load component: %s", promise.Result().String())
		default:
			return nil, errors.New("lazy: component is still loading; preview renders synchronously")
		}
	}

	resolved := module
	if obj, ok := module.(*goja.Object); ok {
		if def := obj.Get("default"); present(def) {
			resolved = def
		}
	}
	if shape, reason := component.Classify(resolved); shape == component.ShapeUnknown {
		return nil, errors.Newf("lazy: resolved value is not a component: %s", reason)
	}

	_ = lazy.Set("_result", resolved)
	return resolved, nil
}

func (f *Framework) setState(call goja.FunctionCall) goja.Value {
	this, ok := call.This.(*goja.Object)
	if !ok {
		panic(f.vm.NewTypeError("setState called on a non-component"))
	}

	inst, live := f.classes[this]
	if !live {
		// Before mount (constructor) or after unmount: merge in place.
		partial := call.Argument(0)
		if fn, ok := goja.AssertFunction(partial); ok {
			v, err := fn(this, classState(this), this.Get("props"))
			if err != nil {
				f.throw(err)
			}
			partial = v
		}
		if present(partial) {
			state := f.vm.NewObject()
			for _, src := range []goja.Value{classState(this), partial} {
				if obj, ok := src.(*goja.Object); ok {
					for _, k := range obj.Keys() {
						_ = state.Set(k, obj.Get(k))
					}
				}
			}
			_ = this.Set("state", state)
		}
		return goja.Undefined()
	}

	if inst.unmounted {
		return goja.Undefined()
	}
	inst.pending = append(inst.pending, call.Argument(0))
	inst.root.markDirty()
	return goja.Undefined()
}

func (f *Framework) forceUpdate(call goja.FunctionCall) goja.Value {
	this, ok := call.This.(*goja.Object)
	if !ok {
		return goja.Undefined()
	}
	if inst, live := f.classes[this]; live && !inst.unmounted {
		inst.forced = true
		inst.root.markDirty()
	}
	return goja.Undefined()
}

func invalidType(typ goja.Value) error {
	return errors.Newf("Element type is invalid: expected a string (for built-in components) or a class/function (for composite components) but got: %s.", typ.String())
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}
