package react

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mount evaluates src, whose completion value is the root component, with
// React, the hooks, h and ErrorBoundary in scope.
func mount(t *testing.T, src string) (*goja.Runtime, *Root) {
	t.Helper()

	vm := goja.New()
	f, err := Install(vm)
	require.NoError(t, err)

	require.NoError(t, vm.Set("React", f.React()))
	require.NoError(t, vm.Set("h", f.React().Get("createElement")))
	require.NoError(t, vm.Set("ErrorBoundary", f.boundary.Get("ErrorBoundary")))
	for _, hook := range f.Hooks() {
		require.NoError(t, vm.Set(hook.Name, hook.Value))
	}

	v, err := vm.RunString("var log = [];\n" + src)
	require.NoError(t, err)
	return vm, f.NewRoot(v, nil)
}

func logOf(vm *goja.Runtime) []any {
	return vm.Get("log").Export().([]any)
}

func TestRenderHostElements(t *testing.T) {
	_, root := mount(t, `(function App() {
		return h("div", {className: "box", style: {fontSize: 12, opacity: 0.5}, onClick: function () {}},
			h("span", null, "a<b"), h("br"), false, null);
	})`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, `<div class="box" style="font-size:12px;opacity:0.5"><span>a&lt;b</span><br/></div>`, html)
}

func TestRenderStateAndEffects(t *testing.T) {
	_, root := mount(t, `(function App() {
		var pair = useState(0);
		var n = pair[0], setN = pair[1];
		useEffect(function () { if (n < 3) setN(n + 1); }, [n]);
		return h("p", null, "count:", n);
	})`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, "<p>count:3</p>", html)
	assert.Equal(t, 4, root.Passes())
}

func TestRenderTooManyRenders(t *testing.T) {
	_, root := mount(t, `(function App() {
		var pair = useState(0);
		pair[1](pair[0] + 1);
		return null;
	})`)

	_, err := root.Render()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyRenders))
}

func TestRenderContext(t *testing.T) {
	_, root := mount(t, `
		var Theme = React.createContext("light");
		function Label() { return h("span", null, useContext(Theme)); }
		(function App() {
			return h("div", null, h(Label), h(Theme.Provider, {value: "dark"}, h(Label)));
		})`)

	html, err := root.Render()
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	spans := doc.Find("div > span")
	require.Equal(t, 2, spans.Length())
	assert.Equal(t, "light", spans.Eq(0).Text())
	assert.Equal(t, "dark", spans.Eq(1).Text())
}

func TestRenderClassLifecycle(t *testing.T) {
	vm, root := mount(t, `
		class Counter extends React.Component {
			constructor(props) { super(props); this.state = {n: 1}; }
			componentDidMount() { log.push("mount"); this.setState({n: 2}); }
			componentDidUpdate() { log.push("update"); }
			componentWillUnmount() { log.push("unmount"); }
			render() { return h("b", null, this.state.n); }
		}
		Counter`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, "<b>2</b>", html)

	require.NoError(t, root.Unmount())
	assert.Equal(t, []any{"mount", "update", "unmount"}, logOf(vm))
}

func TestRenderEffectCleanupOnUnmount(t *testing.T) {
	vm, root := mount(t, `(function App() {
		useEffect(function () {
			log.push("on");
			return function () { log.push("off"); };
		}, []);
		return "ok";
	})`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, "ok", html)

	require.NoError(t, root.Unmount())
	assert.Equal(t, []any{"on", "off"}, logOf(vm))

	_, err = root.Render()
	assert.Error(t, err)
}

func TestRenderErrorBoundaryFallback(t *testing.T) {
	vm, root := mount(t, `
		function Boom() { throw new Error("kaboom"); }
		(function App() {
			return h(ErrorBoundary, {
				onError: function (e) { log.push(e.message); },
				fallbackRender: function (p) { return h("em", null, "caught: " + p.error.message); }
			}, h(Boom));
		})`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, "<em>caught: kaboom</em>", html)
	assert.Equal(t, []any{"kaboom"}, logOf(vm))
}

func TestRenderClassErrorBoundary(t *testing.T) {
	_, root := mount(t, `
		function Boom() { throw new Error("kaboom"); }
		class Guard extends React.Component {
			constructor(props) { super(props); this.state = {failed: false}; }
			static getDerivedStateFromError() { return {failed: true}; }
			render() { return this.state.failed ? "fallback" : this.props.children; }
		}
		(function App() { return h(Guard, null, h(Boom)); })`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, "fallback", html)
}

func TestRenderUncaughtError(t *testing.T) {
	_, root := mount(t, `(function App() { throw new TypeError("bad prop"); })`)

	_, err := root.Render()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad prop")
}

func TestRenderWrappers(t *testing.T) {
	_, root := mount(t, `
		var Fancy = React.forwardRef(function (props, ref) {
			return h("input", {ref: ref, defaultValue: props.v, disabled: true});
		});
		var M = React.memo(function (p) { return h("i", null, p.t); });
		var L = React.lazy(function () {
			return Promise.resolve({default: function () { return "lazy"; }});
		});
		(function App() {
			return h(React.Fragment, null, h(Fancy, {v: "x"}), h(M, {t: "y"}), h(L));
		})`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, `<input value="x" disabled=""/><i>y</i>lazy`, html)
}

func TestRenderInvalidChild(t *testing.T) {
	_, root := mount(t, `(function App() { return h("div", null, {a: 1}); })`)

	_, err := root.Render()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Objects are not valid as a React child")
}

func TestRenderReducerAndRef(t *testing.T) {
	_, root := mount(t, `(function App() {
		var renders = useRef(0);
		renders.current++;
		var pair = useReducer(function (s, a) { return s + a; }, 10);
		var id = useId();
		useLayoutEffect(function () { if (pair[0] === 10) pair[1](5); }, [pair[0]]);
		return h("p", {id: id}, pair[0], "/", renders.current);
	})`)

	html, err := root.Render()
	require.NoError(t, err)
	assert.Equal(t, `<p id=":r1:">15/2</p>`, html)
}

func TestHookOutsideRender(t *testing.T) {
	vm := goja.New()
	f, err := Install(vm)
	require.NoError(t, err)
	require.NoError(t, vm.Set("React", f.React()))

	_, err = vm.RunString(`React.useState(0)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid hook call")
}

func TestInstaller(t *testing.T) {
	caps, err := Installer(goja.New())
	require.NoError(t, err)

	assert.Equal(t, FrameworkName, caps.Framework.Name)
	assert.Len(t, caps.Hooks, 9)
	assert.Equal(t, "useState", caps.Hooks[0].Name)
	for _, spec := range ModuleSpecs() {
		assert.Contains(t, caps.Modules, spec.Name)
	}
	assert.IsType(t, &Framework{}, caps.Handle)
}

func TestCSSProperty(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"fontSize", "font-size"},
		{"color", "color"},
		{"WebkitTransition", "-webkit-transition"},
		{"MozAppearance", "-moz-appearance"},
		{"msTransform", "-ms-transform"},
		{"--accent-color", "--accent-color"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, cssProperty(tt.key))
		})
	}
}
