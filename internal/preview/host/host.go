// Package host drives one preview mount point through its lifecycle:
// Idle, Loading, then Mounted or Failed, and back to Loading on every edit.
package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrClosed is returned by Update and Remount after Close.
var ErrClosed = errors.New("preview host is closed")

// PanicError is a panic recovered from a pipeline run.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Describe reports a recovered panic as a runtime error
func (e *PanicError) Describe() ErrorInfo {
	return ErrorInfo{Kind: KindRuntime, Message: e.Error(), Stack: e.Stack}
}

// Host owns one mount point. Updates are debounced; each one supersedes the
// previous attempt, whose result is discarded if it completes later.
type Host struct {
	pipeline Pipeline
	target   Target
	opts     Options
	logger   *zap.Logger

	// runMu sequences pipeline runs.
	runMu sync.Mutex

	mu        sync.Mutex
	state     State
	source    string
	hasSource bool
	gen       uint64
	cancel    context.CancelFunc
	timer     *time.Timer
	mounted   Mounted
	view      View
	closed    bool
}

// New creates a host and renders its Idle view.
func New(pipeline Pipeline, target Target, opts Options, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}

	h := &Host{
		pipeline: pipeline,
		target:   target,
		opts:     opts,
		logger:   logger,
	}

	h.mu.Lock()
	h.render(View{State: StateIdle, Fallback: opts.Fallback})
	h.mu.Unlock()
	return h
}

// Update schedules a pipeline run for source after the debounce delay,
// cancelling any pending or in-flight attempt.
func (h *Host) Update(source string) error {
	return h.schedule(source, h.opts.Debounce)
}

// Remount re-runs the current source immediately.
func (h *Host) Remount() error {
	h.mu.Lock()
	source, ok := h.source, h.hasSource
	h.mu.Unlock()
	if !ok {
		return errors.New("nothing to remount")
	}
	return h.schedule(source, 0)
}

// State returns the current state
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// View returns the last rendered view
func (h *Host) View() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view
}

// Close cancels pending work and unmounts. No view is rendered afterwards.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.gen++
	h.stopPending()
	mounted := h.mounted
	h.mounted = nil
	h.mu.Unlock()

	if mounted != nil {
		return mounted.Unmount()
	}
	return nil
}

func (h *Host) schedule(source string, delay time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	h.gen++
	gen := h.gen
	h.stopPending()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.source, h.hasSource = source, true

	if h.state != StateLoading {
		h.render(View{State: StateLoading, Fallback: h.opts.Fallback})
	}

	h.logger.Debug("Preview scheduled",
		zap.Uint64("generation", gen),
		zap.Duration("delay", delay),
		zap.Int("bytes", len(source)))

	h.timer = time.AfterFunc(delay, func() {
		h.run(ctx, gen, source)
	})
	return nil
}

// stopPending cancels the current token and timer. Caller holds mu.
func (h *Host) stopPending() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Host) run(ctx context.Context, gen uint64, source string) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	mounted, err := h.execute(ctx, source)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || gen != h.gen {
		h.logger.Debug("Discarding stale preview result", zap.Uint64("generation", gen))
		if mounted != nil {
			if uerr := mounted.Unmount(); uerr != nil {
				h.logger.Warn("Unmount of stale preview failed", zap.Error(uerr))
			}
		}
		return
	}

	if previous := h.mounted; previous != nil {
		h.mounted = nil
		if uerr := previous.Unmount(); uerr != nil {
			h.logger.Warn("Unmount of previous preview failed", zap.Error(uerr))
		}
	}

	view := Result(mounted, err)
	if err != nil {
		h.logger.Info("Preview failed",
			zap.String("kind", string(view.Error.Kind)),
			zap.String("error", view.Error.Message),
			zap.Duration("duration", time.Since(start)))
	} else {
		h.mounted = mounted
		h.logger.Debug("Preview mounted", zap.Duration("duration", time.Since(start)))
	}
	h.render(view)
}

// Result builds the Mounted or Failed view for one pipeline outcome.
func Result(mounted Mounted, err error) View {
	if err != nil {
		info := Describe(err)
		return View{State: StateFailed, Error: &info, Console: info.Console}
	}
	return View{State: StateMounted, HTML: mounted.HTML(), Console: mounted.Console()}
}

// execute runs the pipeline, converting panics into errors.
func (h *Host) execute(ctx context.Context, source string) (mounted Mounted, err error) {
	defer func() {
		if r := recover(); r != nil {
			mounted = nil
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()

	mounted, err = h.pipeline.Run(ctx, source)
	if err == nil && mounted == nil {
		err = errors.New("pipeline returned no component")
	}
	return mounted, err
}

// render publishes a view. Caller holds mu.
func (h *Host) render(view View) {
	if h.closed {
		return
	}
	h.view.Revision++
	view.Revision = h.view.Revision
	view.Height = h.opts.Height
	h.state = view.State
	h.view = view
	h.target.Render(view)
}

// Describe converts a pipeline error into error panel content. Errors that
// do not implement Describer are reported as runtime errors.
func Describe(err error) ErrorInfo {
	var info ErrorInfo
	var d Describer
	if errors.As(err, &d) {
		info = d.Describe()
	} else {
		info = ErrorInfo{Kind: KindRuntime, Message: err.Error()}
	}
	if info.Kind == "" {
		info.Kind = KindRuntime
	}
	info.Label = info.Kind.Label()
	return info
}
