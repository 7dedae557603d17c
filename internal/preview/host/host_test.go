package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
)

// MockPipeline is a mock implementation of Pipeline
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Run(ctx context.Context, source string) (Mounted, error) {
	args := m.Called(ctx, source)
	mounted, _ := args.Get(0).(Mounted)
	return mounted, args.Error(1)
}

// MockMounted is a mock implementation of Mounted
type MockMounted struct {
	mock.Mock
}

func (m *MockMounted) HTML() string {
	return m.Called().String(0)
}

func (m *MockMounted) Console() []sandbox.LogEntry {
	return nil
}

func (m *MockMounted) Unmount() error {
	return m.Called().Error(0)
}

func newMounted(html string) *MockMounted {
	m := &MockMounted{}
	m.On("HTML").Return(html).Maybe()
	m.On("Unmount").Return(nil).Maybe()
	return m
}

// recorder collects rendered views
type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) Render(view View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
}

func (r *recorder) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func (r *recorder) last() View {
	views := r.all()
	if len(views) == 0 {
		return View{}
	}
	return views[len(views)-1]
}

type kindError struct {
	kind ErrorKind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Describe() ErrorInfo {
	return ErrorInfo{Kind: e.kind, Message: e.msg, OriginalCode: "const = ;"}
}

func testOptions() Options {
	return Options{Debounce: 20 * time.Millisecond, Fallback: "loading", Height: "320px"}
}

func TestHostStartsIdle(t *testing.T) {
	rec := &recorder{}
	h := New(&MockPipeline{}, rec, testOptions(), nil)

	assert.Equal(t, StateIdle, h.State())
	views := rec.all()
	require.Len(t, views, 1)
	assert.Equal(t, StateIdle, views[0].State)
	assert.Equal(t, "loading", views[0].Fallback)
	assert.Equal(t, "320px", views[0].Height)
}

func TestHostMountsAfterDebounce(t *testing.T) {
	pipeline := &MockPipeline{}
	pipeline.On("Run", mock.Anything, "src").Return(newMounted("<p>hi</p>"), nil).Once()

	rec := &recorder{}
	h := New(pipeline, rec, testOptions(), nil)
	require.NoError(t, h.Update("src"))
	assert.Equal(t, StateLoading, h.State())

	assert.Eventually(t, func() bool { return h.State() == StateMounted }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "<p>hi</p>", rec.last().HTML)
	assert.Equal(t, h.View(), rec.last())
	pipeline.AssertExpectations(t)
}

func TestHostRapidUpdatesRunOnce(t *testing.T) {
	pipeline := &MockPipeline{}
	pipeline.On("Run", mock.Anything, "c").Return(newMounted("c"), nil).Once()

	rec := &recorder{}
	h := New(pipeline, rec, Options{Debounce: 50 * time.Millisecond}, nil)
	require.NoError(t, h.Update("a"))
	require.NoError(t, h.Update("b"))
	require.NoError(t, h.Update("c"))

	assert.Eventually(t, func() bool { return h.State() == StateMounted }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	pipeline.AssertNumberOfCalls(t, "Run", 1)
	for _, v := range rec.all() {
		assert.NotEqual(t, StateFailed, v.State)
	}
	assert.Equal(t, "c", rec.last().HTML)
}

func TestHostCloseDuringDebounce(t *testing.T) {
	pipeline := &MockPipeline{}
	rec := &recorder{}
	h := New(pipeline, rec, Options{Debounce: 30 * time.Millisecond}, nil)

	require.NoError(t, h.Update("src"))
	require.NoError(t, h.Close())
	time.Sleep(80 * time.Millisecond)

	pipeline.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	views := rec.all()
	require.Len(t, views, 2)
	assert.Equal(t, StateLoading, views[1].State)
	assert.ErrorIs(t, h.Update("again"), ErrClosed)
}

func TestHostDiscardsStaleResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := newMounted("slow")
	fast := newMounted("fast")

	pipeline := &MockPipeline{}
	pipeline.On("Run", mock.Anything, "slow").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(slow, nil).Once()
	pipeline.On("Run", mock.Anything, "fast").Return(fast, nil).Once()

	rec := &recorder{}
	h := New(pipeline, rec, Options{Debounce: time.Millisecond}, nil)

	require.NoError(t, h.Update("slow"))
	<-started
	require.NoError(t, h.Update("fast"))
	close(release)

	assert.Eventually(t, func() bool { return h.State() == StateMounted }, time.Second, 5*time.Millisecond)
	for _, v := range rec.all() {
		assert.NotEqual(t, "slow", v.HTML)
	}
	assert.Equal(t, "fast", rec.last().HTML)
	slow.AssertCalled(t, "Unmount")
	fast.AssertNotCalled(t, "Unmount")
}

func TestHostFailure(t *testing.T) {
	pipeline := &MockPipeline{}
	pipeline.On("Run", mock.Anything, "bad").Return(nil, &kindError{kind: KindCompile, msg: "line 1: Unexpected"}).Once()

	rec := &recorder{}
	h := New(pipeline, rec, Options{}, nil)
	require.NoError(t, h.Update("bad"))

	assert.Eventually(t, func() bool { return h.State() == StateFailed }, time.Second, 5*time.Millisecond)
	view := rec.last()
	require.NotNil(t, view.Error)
	assert.Equal(t, KindCompile, view.Error.Kind)
	assert.Equal(t, "Compile error", view.Error.Label)
	assert.Equal(t, "const = ;", view.Error.OriginalCode)
}

func TestHostRecoversPanics(t *testing.T) {
	pipeline := &MockPipeline{}
	pipeline.On("Run", mock.Anything, "boom").Run(func(mock.Arguments) {
		panic("exploded")
	}).Return(nil, nil)

	rec := &recorder{}
	h := New(pipeline, rec, Options{}, nil)
	require.NoError(t, h.Update("boom"))

	assert.Eventually(t, func() bool { return h.State() == StateFailed }, time.Second, 5*time.Millisecond)
	view := rec.last()
	require.NotNil(t, view.Error)
	assert.Equal(t, KindRuntime, view.Error.Kind)
	assert.Contains(t, view.Error.Message, "exploded")
	assert.NotEmpty(t, view.Error.Stack)
}

func TestHostRemountReplacesMounted(t *testing.T) {
	first := newMounted("one")
	second := newMounted("two")

	pipeline := &MockPipeline{}
	pipeline.On("Run", mock.Anything, "src").Return(first, nil).Once()
	pipeline.On("Run", mock.Anything, "src").Return(second, nil).Once()

	rec := &recorder{}
	h := New(pipeline, rec, Options{}, nil)
	assert.Error(t, h.Remount())

	require.NoError(t, h.Update("src"))
	assert.Eventually(t, func() bool { return rec.last().HTML == "one" }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Remount())
	assert.Eventually(t, func() bool { return rec.last().HTML == "two" }, time.Second, 5*time.Millisecond)
	first.AssertCalled(t, "Unmount")

	require.NoError(t, h.Close())
	second.AssertCalled(t, "Unmount")
}

func TestStateAndKindNames(t *testing.T) {
	assert.Equal(t, "mounted", StateMounted.String())
	text, err := StateFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "failed", string(text))
	assert.Equal(t, "No component found", KindNoComponent.Label())
}

func TestStateUnmarshalText(t *testing.T) {
	var s State
	require.NoError(t, s.UnmarshalText([]byte("loading")))
	assert.Equal(t, StateLoading, s)
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))
}

func TestResultViews(t *testing.T) {
	view := Result(newMounted("<p>ok</p>"), nil)
	assert.Equal(t, StateMounted, view.State)
	assert.Equal(t, "<p>ok</p>", view.HTML)
	assert.Nil(t, view.Error)

	failed := Result(nil, errors.New("boom"))
	assert.Equal(t, StateFailed, failed.State)
	require.NotNil(t, failed.Error)
	assert.Equal(t, KindRuntime, failed.Error.Kind)
	assert.Equal(t, "Runtime error", failed.Error.Label)
	assert.Equal(t, "boom", failed.Error.Message)
}
