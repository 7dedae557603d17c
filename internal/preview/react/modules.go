package react

import (
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
)

// Importable module names.
const (
	ModuleReact         = "react"
	ModuleJSXRuntime    = "react/jsx-runtime"
	ModuleErrorBoundary = "react-error-boundary"
)

// FrameworkName is the parameter name the framework object is bound to.
const FrameworkName = "React"

// ModuleSpecs describes the modules this package provides.
func ModuleSpecs() []sandbox.ModuleSpec {
	return []sandbox.ModuleSpec{
		{
			Name:        ModuleReact,
			Description: "React-compatible component model, hooks and context",
			Exports: []string{
				"Children", "Component", "Fragment", "PureComponent", "StrictMode", "Suspense",
				"cloneElement", "createContext", "createElement", "forwardRef", "isValidElement",
				"lazy", "memo", "useCallback", "useContext", "useEffect", "useId",
				"useLayoutEffect", "useMemo", "useReducer", "useRef", "useState", "version",
			},
		},
		{
			Name:        ModuleJSXRuntime,
			Description: "Automatic JSX runtime",
			Exports:     []string{"Fragment", "jsx", "jsxDEV", "jsxs"},
		},
		{
			Name:        ModuleErrorBoundary,
			Description: "Declarative error boundary with fallback rendering",
			Exports:     []string{"ErrorBoundary"},
		},
	}
}

// Installer installs a fresh Framework and exposes it as a capability set.
// Capabilities.Handle holds the *Framework.
func Installer(vm *goja.Runtime) (*sandbox.Capabilities, error) {
	f, err := Install(vm)
	if err != nil {
		return nil, err
	}

	hooks := make([]sandbox.Binding, 0, len(f.hooks))
	for _, h := range f.hooks {
		hooks = append(hooks, sandbox.Binding{Name: h.Name, Value: h.Value})
	}

	return &sandbox.Capabilities{
		Framework: sandbox.Binding{Name: FrameworkName, Value: f.react},
		Hooks:     hooks,
		Modules:   f.Modules(),
		Handle:    f,
	}, nil
}
