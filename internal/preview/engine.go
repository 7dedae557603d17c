package preview

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/component"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/imports"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/react"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/transpile"
)

// Pipeline stages, as reported to the Recorder.
const (
	StageRewrite   = "rewrite"
	StageTranspile = "transpile"
	StageEvaluate  = "evaluate"
	StageNormalize = "normalize"
	StageRender    = "render"
)

// OutcomeMounted is recorded for runs that mounted a component.
const OutcomeMounted = "mounted"

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	RecordOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) RecordOutcome(string)               {}

// Config configures an Engine.
type Config struct {
	Sandbox        sandbox.Config
	MaxSourceBytes int
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		Sandbox:        sandbox.DefaultConfig(),
		MaxSourceBytes: 256 * 1024,
	}
}

// DefaultTable returns the allow-list of importable modules.
func DefaultTable() *sandbox.Table {
	table, err := sandbox.NewTable(react.ModuleSpecs()...)
	if err != nil {
		panic(err)
	}
	return table
}

// Compilation is the output of the rewrite and transpile stages.
type Compilation struct {
	Rewritten string           `json:"rewritten"`
	Imports   []string         `json:"imports"`
	Result    transpile.Result `json:"result"`
}

// Result is a successful evaluation with its selected component.
type Result struct {
	Compilation *Compilation
	Evaluation  *sandbox.Evaluation
	Component   *component.Ref
	Framework   *react.Framework
}

// Engine runs the preview pipeline. It is safe for concurrent use; every
// call builds its own runtime and module environment.
type Engine struct {
	cfg       Config
	evaluator *sandbox.Evaluator
	logger    *zap.Logger
	metrics   Recorder
}

// NewEngine creates an engine linking against table.
func NewEngine(cfg Config, table *sandbox.Table, logger *zap.Logger, metrics Recorder) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Engine{
		cfg:       cfg,
		evaluator: sandbox.NewEvaluator(table, react.Installer, cfg.Sandbox, logger.Named("sandbox")),
		logger:    logger,
		metrics:   metrics,
	}
}

// Table returns the allow-list the engine links against
func (e *Engine) Table() *sandbox.Table {
	return e.evaluator.Table()
}

// Compile rewrites imports and transpiles source. It never returns an error;
// diagnostics are carried in the result.
func (e *Engine) Compile(source string) *Compilation {
	start := time.Now()
	rewritten := imports.Rewrite(source)
	e.metrics.ObserveStage(StageRewrite, time.Since(start))

	start = time.Now()
	res := transpile.Transpile(rewritten)
	e.metrics.ObserveStage(StageTranspile, time.Since(start))

	return &Compilation{
		Rewritten: rewritten,
		Imports:   imports.Specifiers(source),
		Result:    res,
	}
}

// Evaluate runs source through rewrite, transpile, evaluation and component
// selection. Failures are returned as *Error. ctx is checked between stages;
// a stage that has started always runs to completion or timeout.
func (e *Engine) Evaluate(ctx context.Context, source string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit := e.cfg.MaxSourceBytes; limit > 0 && len(source) > limit {
		return nil, e.fail(&Error{
			Kind:    KindCompile,
			Message: errors.Newf("source is %d bytes; the limit is %d", len(source), limit).Error(),
		})
	}

	comp := e.Compile(source)
	if len(comp.Result.Errors) > 0 {
		return nil, e.fail(compileError(comp.Result))
	}
	e.logger.Debug("Preview compiled",
		zap.Strings("imports", comp.Imports),
		zap.Int("bytes", len(comp.Result.Code)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	ev, err := e.evaluator.Evaluate(context.WithoutCancel(ctx), comp.Result.Code)
	e.metrics.ObserveStage(StageEvaluate, time.Since(start))
	if err != nil {
		return nil, e.fail(thrownError(KindRuntime, err, comp.Result.OriginalCode))
	}

	if err := ctx.Err(); err != nil {
		_ = ev.Runtime.Close()
		return nil, err
	}

	start = time.Now()
	var ref *component.Ref
	err = ev.Runtime.Run(context.WithoutCancel(ctx), func(*goja.Runtime) error {
		var nerr error
		ref, nerr = component.Normalize(ev.Exports, component.ExportOrder(comp.Rewritten)...)
		return nerr
	})
	e.metrics.ObserveStage(StageNormalize, time.Since(start))
	if err != nil {
		_ = ev.Runtime.Close()
		var notFound *component.NotFoundError
		if errors.As(err, &notFound) {
			return nil, e.fail(noComponentError(notFound, comp.Result.OriginalCode, ev.Runtime.Console()))
		}
		return nil, e.fail(thrownError(KindRuntime, err, comp.Result.OriginalCode))
	}

	fw, ok := ev.Capabilities.Handle.(*react.Framework)
	if !ok {
		_ = ev.Runtime.Close()
		return nil, errors.AssertionFailedf("capability handle is %T, not *react.Framework", ev.Capabilities.Handle)
	}

	e.logger.Debug("Component selected",
		zap.String("export", ref.Name),
		zap.Stringer("shape", ref.Shape))

	return &Result{
		Compilation: comp,
		Evaluation:  ev,
		Component:   ref,
		Framework:   fw,
	}, nil
}

// Run evaluates source and mounts the selected component. It implements
// host.Pipeline.
func (e *Engine) Run(ctx context.Context, source string) (host.Mounted, error) {
	m, err := e.Mount(ctx, source)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Mount evaluates source and renders the selected component inside a crash
// boundary. Errors thrown while rendering are reported as KindRender.
func (e *Engine) Mount(ctx context.Context, source string) (*Mount, error) {
	res, err := e.Evaluate(ctx, source)
	if err != nil {
		return nil, err
	}
	rt := res.Evaluation.Runtime

	if err := ctx.Err(); err != nil {
		_ = rt.Close()
		return nil, err
	}

	start := time.Now()
	root := res.Framework.NewRoot(res.Component.Value, nil)
	var html string
	err = rt.Run(context.WithoutCancel(ctx), func(*goja.Runtime) error {
		var rerr error
		html, rerr = root.Render()
		if rerr != nil {
			_ = root.Unmount()
		}
		return rerr
	})
	e.metrics.ObserveStage(StageRender, time.Since(start))
	if err != nil {
		rerr := thrownError(KindRender, err, res.Compilation.Result.OriginalCode)
		rerr.Console = rt.Console()
		_ = rt.Close()
		return nil, e.fail(rerr)
	}

	e.metrics.RecordOutcome(OutcomeMounted)
	return &Mount{
		runtime:   rt,
		root:      root,
		html:      html,
		component: res.Component.Name,
		shape:     res.Component.Shape,
	}, nil
}

func (e *Engine) fail(err *Error) *Error {
	e.metrics.RecordOutcome(string(err.Kind))
	e.logger.Info("Preview pipeline failed",
		zap.String("kind", string(err.Kind)),
		zap.String("error", err.Message))
	return err
}

// Mount is a rendered component. It keeps its runtime alive until Unmount.
type Mount struct {
	runtime   *sandbox.Runtime
	root      *react.Root
	html      string
	component string
	shape     component.Shape
	unmounted bool
}

// HTML returns the rendered markup
func (m *Mount) HTML() string {
	return m.html
}

// Console returns console output captured during evaluation and render
func (m *Mount) Console() []sandbox.LogEntry {
	return m.runtime.Console()
}

// Component returns the export name the component was selected from
func (m *Mount) Component() string {
	return m.component
}

// Shape returns the classification of the mounted component
func (m *Mount) Shape() component.Shape {
	return m.shape
}

// Unmount runs effect cleanups and componentWillUnmount, then releases the
// runtime.
func (m *Mount) Unmount() error {
	if m.unmounted {
		return nil
	}
	m.unmounted = true

	err := m.runtime.Run(context.Background(), func(*goja.Runtime) error {
		return m.root.Unmount()
	})
	if cerr := m.runtime.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
