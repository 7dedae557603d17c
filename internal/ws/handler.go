package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/logging"
	"github.com/GriffinCanCode/AgentOS/preview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/sanitize"
)

// Client message types.
const (
	TypeSource  = "source"
	TypeRemount = "remount"
	TypePing    = "ping"
)

// Server frame types.
const (
	TypeSession = "session"
	TypeView    = "view"
	TypePong    = "pong"
	TypeError   = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is a client to server message.
type Message struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

// Frame is a server to client message.
type Frame struct {
	Type      string     `json:"type"`
	Session   string     `json:"session,omitempty"`
	View      *host.View `json:"view,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// Options configures live sessions.
type Options struct {
	Host           host.Options
	MaxSourceBytes int
}

// Handler serves live preview sessions. Each connection owns one preview
// host; closing the connection unmounts it.
type Handler struct {
	pipeline  host.Pipeline
	opts      Options
	sanitizer *sanitize.Sanitizer
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHandler creates a live preview handler. sanitizer and metrics may be nil.
func NewHandler(pipeline host.Pipeline, opts Options, sanitizer *sanitize.Sanitizer, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics != nil {
		pipeline = &timedPipeline{Pipeline: pipeline, metrics: metrics}
	}
	return &Handler{
		pipeline:  pipeline,
		opts:      opts,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    &logging.Logger{Logger: logger.Named("ws")},
		conns:     make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // editors are served from arbitrary origins
			},
		},
	}
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.track(conn)
	defer h.untrack(conn)

	sessionID := id.NewSessionID()
	logger := h.logger.Session(sessionID.String())
	sess := newSession(conn, h.sanitizer, h.metrics, logger)

	if h.metrics != nil {
		h.metrics.IncSessions()
		defer h.metrics.DecSessions()
	}

	sess.enqueue(Frame{Type: TypeSession, Session: sessionID.String()})
	preview := host.New(h.pipeline, sess, h.opts.Host, logger)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop()
	}()

	logger.Info("Live session opened", zap.String("client_ip", c.ClientIP()))
	h.readLoop(conn, sess, preview, logger)

	if err := preview.Close(); err != nil {
		logger.Warn("Unmount on disconnect failed", zap.Error(err))
	}
	sess.stop()
	<-writerDone
	conn.Close()
	var fields []zap.Field
	if opened, err := id.Timestamp(sessionID.String()); err == nil {
		fields = append(fields, zap.Duration("duration", time.Since(opened)))
	}
	logger.Info("Live session closed", fields...)
}

func (h *Handler) readLoop(conn *websocket.Conn, sess *session, preview *host.Host, logger *zap.Logger) {
	if limit := h.opts.MaxSourceBytes; limit > 0 {
		conn.SetReadLimit(int64(6*limit + 4096))
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			sess.sendError("malformed message")
			continue
		}
		h.recordMessage("in", msg.Type)

		switch msg.Type {
		case TypeSource:
			if limit := h.opts.MaxSourceBytes; limit > 0 && len(msg.Code) > limit {
				sess.sendError(fmt.Sprintf("source is %d bytes; the limit is %d", len(msg.Code), limit))
				continue
			}
			if err := preview.Update(msg.Code); err != nil {
				sess.sendError(err.Error())
			}
		case TypeRemount:
			if err := preview.Remount(); err != nil {
				sess.sendError(err.Error())
			}
		case TypePing:
			sess.enqueue(Frame{Type: TypePong})
		default:
			sess.sendError("unknown message type")
		}
	}
}

// CloseAll disconnects every live session. Each session unmounts its
// preview as its read loop ends.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
}

// Sessions returns the number of open connections
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) track(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

func (h *Handler) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

// timedPipeline records end-to-end live runs.
type timedPipeline struct {
	host.Pipeline
	metrics *monitoring.Metrics
}

func (p *timedPipeline) Run(ctx context.Context, source string) (host.Mounted, error) {
	timer := monitoring.NewTimer(p.metrics, "ws")
	mounted, err := p.Pipeline.Run(ctx, source)
	if err != nil {
		timer.Stop(string(host.Describe(err).Kind))
	} else {
		timer.Stop("mounted")
	}
	return mounted, err
}
