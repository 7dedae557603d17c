package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/middleware"
	"github.com/GriffinCanCode/AgentOS/preview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/component"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/transpile"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/sanitize"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// A JSON string escape is at most six bytes per source byte (\u003c), and
// bodySlack covers the framing around it.
const (
	escapeFactor = 6
	bodySlack    = 4096
)

// Options configures the handlers.
type Options struct {
	MaxSourceBytes int
	Height         string
}

// SourceRequest is the body of the preview and transpile endpoints.
type SourceRequest struct {
	Code string `json:"code"`
}

// PreviewResponse is one synchronous pipeline run rendered as a view.
type PreviewResponse struct {
	host.View
	Component   string                 `json:"component,omitempty"`
	Shape       string                 `json:"shape,omitempty"`
	Diagnostics []transpile.Diagnostic `json:"diagnostics,omitempty"`
	Candidates  []component.Candidate  `json:"candidates,omitempty"`
	DurationMs  float64                `json:"durationMs"`
}

// TranspileResponse exposes the compile stages without evaluating.
type TranspileResponse struct {
	OK           bool                   `json:"ok"`
	Rewritten    string                 `json:"rewritten"`
	Code         string                 `json:"code"`
	Imports      []string               `json:"imports"`
	Diagnostics  []transpile.Diagnostic `json:"diagnostics"`
	OriginalCode string                 `json:"originalCode"`
}

// Handlers contains all HTTP handlers
type Handlers struct {
	engine    *preview.Engine
	sanitizer *sanitize.Sanitizer
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	hasher    *utils.Hasher
	opts      Options
	started   time.Time
}

// NewHandlers creates a new handler set. sanitizer and metrics may be nil.
func NewHandlers(engine *preview.Engine, sanitizer *sanitize.Sanitizer, metrics *monitoring.Metrics, logger *zap.Logger, opts Options) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		engine:    engine,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		hasher:    utils.DefaultHasher(),
		opts:      opts,
		started:   time.Now(),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Component Preview Service",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"modules":        h.engine.Table().Names(),
		"sanitize":       h.sanitizer != nil,
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

// ListModules lists the modules preview code may import
func (h *Handlers) ListModules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modules": h.engine.Table().Specs(),
	})
}

// Stats returns the JSON metrics snapshot
func (h *Handlers) Stats(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// Preview runs the full pipeline once and returns the Mounted or Failed view.
// Pipeline failures are results, not HTTP errors.
func (h *Handlers) Preview(c *gin.Context) {
	code, ok := h.bindSource(c)
	if !ok {
		return
	}

	timer := monitoring.NewTimer(h.metrics, "http")
	resp := RunPreview(c.Request.Context(), h.engine, code, h.logger.With(
		zap.String("request_id", middleware.GetRequestID(c))))
	if resp.Error != nil {
		timer.Stop(string(resp.Error.Kind))
	} else {
		timer.Stop(preview.OutcomeMounted)
	}

	resp.View.Height = h.opts.Height
	resp.View = h.sanitizer.View(resp.View)

	c.JSON(http.StatusOK, resp)
}

// RunPreview mounts code once, unmounts it and reports the outcome as a view.
func RunPreview(ctx context.Context, engine *preview.Engine, code string, logger *zap.Logger) PreviewResponse {
	start := time.Now()
	m, err := engine.Mount(ctx, code)

	var resp PreviewResponse
	if err != nil {
		resp.View = host.Result(nil, err)
		var perr *preview.Error
		if errors.As(err, &perr) {
			resp.Diagnostics = perr.Diagnostics
			resp.Candidates = perr.Candidates
		}
	} else {
		resp.View = host.Result(m, nil)
		resp.Component = m.Component()
		resp.Shape = m.Shape().String()
		if uerr := m.Unmount(); uerr != nil && logger != nil {
			logger.Warn("Unmount after preview failed", zap.Error(uerr))
		}
	}

	resp.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	return resp
}

// Transpile rewrites and transpiles without evaluating. Responses carry an
// ETag derived from the source.
func (h *Handlers) Transpile(c *gin.Context) {
	code, ok := h.bindSource(c)
	if !ok {
		return
	}

	etag := h.hasher.ETag("transpile", Version, code)
	c.Header("ETag", etag)
	if utils.MatchETag(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}

	comp := h.engine.Compile(code)
	c.JSON(http.StatusOK, TranspileResponse{
		OK:           len(comp.Result.Errors) == 0,
		Rewritten:    comp.Rewritten,
		Code:         comp.Result.Code,
		Imports:      nonNil(comp.Imports),
		Diagnostics:  nonNil(comp.Result.Errors),
		OriginalCode: comp.Result.OriginalCode,
	})
}

// bindSource decodes the request body, answering 400 or 413 itself when it
// cannot.
func (h *Handlers) bindSource(c *gin.Context) (string, bool) {
	limit := h.opts.MaxSourceBytes
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(escapeFactor*limit+bodySlack))
	}

	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return "", false
	}

	if limit > 0 && len(req.Code) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("source is %d bytes; the limit is %d", len(req.Code), limit),
		})
		return "", false
	}
	return req.Code, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
