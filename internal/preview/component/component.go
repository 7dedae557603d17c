package component

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dop251/goja"
)

// Marker property carried by framework-built wrapper objects and elements.
const TypeofKey = "$$typeof"

// Wrapper markers recognised as components.
const (
	MemoTag       = "react.memo"
	ForwardRefTag = "react.forward_ref"
	LazyTag       = "react.lazy"
)

// Shape is the structural classification of a candidate value.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeFunction
	ShapeClass
	ShapeMemo
	ShapeForwardRef
	ShapeLazy
)

// String returns the string representation of the shape
func (s Shape) String() string {
	switch s {
	case ShapeFunction:
		return "function component"
	case ShapeClass:
		return "class component"
	case ShapeMemo:
		return "memo wrapper"
	case ShapeForwardRef:
		return "forwardRef wrapper"
	case ShapeLazy:
		return "lazy wrapper"
	default:
		return "unknown"
	}
}

// MarshalText renders the shape for JSON payloads
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a name produced by MarshalText. Unrecognised names
// decode as ShapeUnknown.
func (s *Shape) UnmarshalText(text []byte) error {
	*s = ShapeUnknown
	for candidate := ShapeFunction; candidate <= ShapeLazy; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			break
		}
	}
	return nil
}

// Ref is the value accepted as the component to render.
type Ref struct {
	Name  string
	Shape Shape
	Value goja.Value
}

// Candidate records how one export was classified.
type Candidate struct {
	Name   string `json:"name"`
	Shape  Shape  `json:"shape"`
	Reason string `json:"reason,omitempty"`
}

// NotFoundError reports that no export qualifies as a component.
type NotFoundError struct {
	Candidates []Candidate
}

func (e *NotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return "no valid component found: module has no exports"
	}

	var b strings.Builder
	b.WriteString("no valid component found in exports:")
	for _, c := range e.Candidates {
		fmt.Fprintf(&b, "\n  %s: %s", c.Name, c.Reason)
	}
	return b.String()
}

// Classify inspects a value's shape. Predicates run in a fixed priority order
// and never compare against engine-internal identities.
func Classify(v goja.Value) (Shape, string) {
	if !present(v) {
		return ShapeUnknown, fmt.Sprintf("%s is not a component", typeName(v))
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return ShapeUnknown, fmt.Sprintf("%s is not a function or component wrapper", typeName(v))
	}

	if _, isFn := goja.AssertFunction(obj); !isFn {
		switch Tag(obj) {
		case MemoTag:
			return ShapeMemo, ""
		case ForwardRefTag:
			return ShapeForwardRef, ""
		case LazyTag:
			return ShapeLazy, ""
		case "":
			return ShapeUnknown, fmt.Sprintf("%s is not a function or component wrapper", typeName(v))
		default:
			return ShapeUnknown, fmt.Sprintf("%s marker %q is not a component", typeName(v), Tag(obj))
		}
	}

	proto, ok := obj.Get("prototype").(*goja.Object)
	if !ok {
		return ShapeFunction, ""
	}
	if present(proto.Get("isReactComponent")) {
		return ShapeClass, ""
	}
	if _, hasRender := goja.AssertFunction(proto.Get("render")); hasRender {
		return ShapeUnknown, "class with render() does not extend Component"
	}
	return ShapeFunction, ""
}

// Tag returns the marker string of an object, or "" when it has none.
func Tag(obj *goja.Object) string {
	if obj == nil {
		return ""
	}
	marker := obj.Get(TypeofKey)
	if !present(marker) {
		return ""
	}
	if s, ok := marker.Export().(string); ok {
		return s
	}
	return ""
}

// Normalize selects the component among a module's exports. module.exports
// itself wins when it is a component; otherwise the default export is tested
// first, then the names in order, then every remaining own enumerable export
// in insertion order. order is usually ExportOrder of the module source.
func Normalize(exports goja.Value, order ...string) (*Ref, error) {
	if shape, _ := Classify(exports); shape != ShapeUnknown {
		return &Ref{Name: "module.exports", Shape: shape, Value: exports}, nil
	}

	obj, ok := exports.(*goja.Object)
	if !ok || !present(exports) {
		_, reason := Classify(exports)
		return nil, &NotFoundError{Candidates: []Candidate{{Name: "module.exports", Reason: reason}}}
	}

	var candidates []Candidate
	try := func(name string) *Ref {
		v, err := safeGet(obj, name)
		if err != nil {
			candidates = append(candidates, Candidate{Name: name, Reason: "reading export threw: " + err.Error()})
			return nil
		}
		shape, reason := Classify(v)
		if shape == ShapeUnknown {
			candidates = append(candidates, Candidate{Name: name, Shape: shape, Reason: reason})
			return nil
		}
		return &Ref{Name: name, Shape: shape, Value: v}
	}

	if hasDefault(obj) {
		if ref := try("default"); ref != nil {
			return ref, nil
		}
	}
	keys := obj.Keys()
	own := make(map[string]bool, len(keys))
	for _, key := range keys {
		own[key] = true
	}
	tried := map[string]bool{"default": true}
	for _, key := range slices.Concat(order, keys) {
		if tried[key] || !own[key] {
			continue
		}
		tried[key] = true
		if ref := try(key); ref != nil {
			return ref, nil
		}
	}

	return nil, &NotFoundError{Candidates: candidates}
}

func hasDefault(obj *goja.Object) bool {
	for _, key := range obj.Keys() {
		if key == "default" {
			return true
		}
	}
	v, err := safeGet(obj, "default")
	return err != nil || v != nil
}

// safeGet reads a property whose getter may throw.
func safeGet(obj *goja.Object, name string) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = ex
				return
			}
			if val, ok := r.(goja.Value); ok {
				err = fmt.Errorf("%s", val.String())
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return obj.Get(name), nil
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// typeName approximates the JS typeof of a value for diagnostics.
func typeName(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}

	if obj, ok := v.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); isFn {
			return "function"
		}
		if obj.ClassName() == "Array" {
			return "array"
		}
		return "object"
	}
	if _, ok := v.(*goja.Symbol); ok {
		return "symbol"
	}

	switch v.Export().(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	default:
		return "bigint"
	}
}
