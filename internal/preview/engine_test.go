package preview

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/component"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
)

type countingRecorder struct {
	mu       sync.Mutex
	stages   map[string]int
	outcomes map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{stages: map[string]int{}, outcomes: map[string]int{}}
}

func (r *countingRecorder) ObserveStage(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage]++
}

func (r *countingRecorder) RecordOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(DefaultConfig(), DefaultTable(), nil, nil)
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var perr *Error
	require.True(t, errors.As(err, &perr), "expected *preview.Error, got %T: %v", err, err)
	assert.Equal(t, kind, perr.Kind)
	return perr
}

const counterSource = `
import React, { useState } from "react";

export const answer = 42;

export default function Counter({ start = 1 }: { start?: number }) {
  const [n] = useState(start);
  return <div className="counter">Count: {n}</div>;
}
`

func TestMountDefaultComponent(t *testing.T) {
	rec := newCountingRecorder()
	engine := NewEngine(DefaultConfig(), DefaultTable(), nil, rec)

	m, err := engine.Mount(context.Background(), counterSource)
	require.NoError(t, err)
	defer m.Unmount()

	assert.Equal(t, "default", m.Component())
	assert.Equal(t, component.ShapeFunction, m.Shape())

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(m.HTML()))
	require.NoError(t, err)
	assert.Equal(t, "Count: 1", doc.Find("div.counter").Text())

	assert.Equal(t, 1, rec.outcomes[OutcomeMounted])
	for _, stage := range []string{StageRewrite, StageTranspile, StageEvaluate, StageNormalize, StageRender} {
		assert.Equal(t, 1, rec.stages[stage], stage)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)

	first, err := engine.Evaluate(context.Background(), counterSource)
	require.NoError(t, err)
	second, err := engine.Evaluate(context.Background(), counterSource)
	require.NoError(t, err)

	assert.Equal(t, first.Component.Name, second.Component.Name)
	assert.Equal(t, first.Component.Shape, second.Component.Shape)
	assert.Equal(t, first.Compilation.Result.Code, second.Compilation.Result.Code)
	assert.NotSame(t, first.Evaluation.Environment, second.Evaluation.Environment)

	a, err := engine.Mount(context.Background(), counterSource)
	require.NoError(t, err)
	b, err := engine.Mount(context.Background(), counterSource)
	require.NoError(t, err)
	assert.Equal(t, a.HTML(), b.HTML())
}

func TestTypeErrorsDoNotBlock(t *testing.T) {
	m, err := newTestEngine(t).Mount(context.Background(), `const x: number = "hello"; export default () => null;`)
	require.NoError(t, err)
	assert.Equal(t, "", m.HTML())
}

func TestDisallowedImport(t *testing.T) {
	_, err := newTestEngine(t).Mount(context.Background(), `
import fs from "fs";
export default () => null;
`)
	perr := requireKind(t, err, KindRuntime)
	assert.Contains(t, perr.Message, `Module "fs" is not allowed in preview environment`)
	assert.NotEmpty(t, perr.OriginalCode)
}

func TestNoComponentListsExports(t *testing.T) {
	_, err := newTestEngine(t).Mount(context.Background(), `export const x = 5;`)

	perr := requireKind(t, err, KindNoComponent)
	require.Len(t, perr.Candidates, 1)
	assert.Equal(t, "x", perr.Candidates[0].Name)
	assert.Equal(t, component.ShapeUnknown, perr.Candidates[0].Shape)
	assert.Contains(t, perr.Message, "x: ")
}

func TestDefaultSelectedOverNamedValues(t *testing.T) {
	res, err := newTestEngine(t).Evaluate(context.Background(), `
export const title = "hello";
export const items = [1, 2, 3];
export default function App() { return <h1>{title}</h1>; }
`)
	require.NoError(t, err)
	assert.Equal(t, "default", res.Component.Name)
}

func TestFirstDeclaredNamedExportSelected(t *testing.T) {
	m, err := newTestEngine(t).Mount(context.Background(), `
export const Zed = () => <p>zed</p>;
export const Alpha = () => <p>alpha</p>;
`)
	require.NoError(t, err)
	assert.Equal(t, "Zed", m.Component())
	assert.Equal(t, "<p>zed</p>", m.HTML())
}

func TestTemplateLiteralBlankLinesSurvive(t *testing.T) {
	m, err := newTestEngine(t).Mount(context.Background(),
		"const s = `a\n\n\n\nb`;\nexport default () => <p>{String(s.split(\"\\n\").length)}</p>;")
	require.NoError(t, err)
	assert.Equal(t, "<p>5</p>", m.HTML())
}

func TestCompileError(t *testing.T) {
	_, err := newTestEngine(t).Mount(context.Background(), "export default () => <div>\n")

	perr := requireKind(t, err, KindCompile)
	assert.NotEmpty(t, perr.Diagnostics)
	assert.NotEmpty(t, perr.OriginalCode)
	assert.Contains(t, perr.Message, "line ")
}

func TestTopLevelThrowIsRuntimeError(t *testing.T) {
	_, err := newTestEngine(t).Mount(context.Background(), `
console.log("before");
throw new Error("top level");
`)
	perr := requireKind(t, err, KindRuntime)
	assert.Equal(t, "Error: top level", perr.Message)
	assert.NotEmpty(t, perr.Stack)
	require.Len(t, perr.Console, 1)
	assert.Equal(t, "before", perr.Console[0].Message)
}

func TestRenderErrorAfterMount(t *testing.T) {
	_, err := newTestEngine(t).Mount(context.Background(), `
export default function App() { throw new Error("render failed"); }
`)
	perr := requireKind(t, err, KindRender)
	assert.Contains(t, perr.Message, "render failed")
	assert.Equal(t, "Render error", perr.Describe().Kind.Label())
}

func TestErrorBoundaryModule(t *testing.T) {
	m, err := newTestEngine(t).Mount(context.Background(), `
import { ErrorBoundary } from "react-error-boundary";

function Boom(): JSX.Element {
  throw new Error("nope");
}

export default function App() {
  return (
    <ErrorBoundary fallback={<p>fallback</p>}>
      <Boom />
    </ErrorBoundary>
  );
}
`)
	require.NoError(t, err)
	assert.Equal(t, "<p>fallback</p>", m.HTML())
}

func TestUnmountRunsCleanups(t *testing.T) {
	m, err := newTestEngine(t).Mount(context.Background(), `
import { useEffect } from "react";
export default function App() {
  useEffect(() => {
    console.log("mounted");
    return () => console.log("bye");
  }, []);
  return <span>live</span>;
}
`)
	require.NoError(t, err)
	require.NoError(t, m.Unmount())
	require.NoError(t, m.Unmount())

	var messages []string
	for _, entry := range m.Console() {
		messages = append(messages, entry.Message)
	}
	assert.Equal(t, []string{"mounted", "bye"}, messages)
}

func TestSourceSizeLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSourceBytes = 10
	engine := NewEngine(cfg, DefaultTable(), nil, nil)

	_, err := engine.Mount(context.Background(), "export default () => null;")
	perr := requireKind(t, err, KindCompile)
	assert.Contains(t, perr.Message, "limit")
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t).Mount(ctx, counterSource)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineDrivesHost(t *testing.T) {
	var mu sync.Mutex
	var views []host.View
	target := host.TargetFunc(func(v host.View) {
		mu.Lock()
		defer mu.Unlock()
		views = append(views, v)
	})

	h := host.New(newTestEngine(t), target, host.Options{Debounce: 10 * time.Millisecond}, nil)
	defer h.Close()

	require.NoError(t, h.Update(`const x: number = "hello"; export default () => <b>ok</b>;`))
	assert.Eventually(t, func() bool { return h.State() == host.StateMounted }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "<b>ok</b>", h.View().HTML)

	require.NoError(t, h.Update(`export const x = 5;`))
	assert.Eventually(t, func() bool { return h.State() == host.StateFailed }, 5*time.Second, 10*time.Millisecond)
	require.NotNil(t, h.View().Error)
	assert.Equal(t, host.KindNoComponent, h.View().Error.Kind)
}

func TestDefaultTable(t *testing.T) {
	assert.Equal(t, []string{"react", "react-error-boundary", "react/jsx-runtime"}, DefaultTable().Names())
}
