package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/sanitize"
)

// session is the host's render target for one connection. Views are
// coalesced: only the newest unsent view is written, so a slow client never
// blocks the host.
type session struct {
	conn      *websocket.Conn
	sanitizer *sanitize.Sanitizer
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	mu     sync.Mutex
	frames []Frame
	latest *host.View

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newSession(conn *websocket.Conn, sanitizer *sanitize.Sanitizer, metrics *monitoring.Metrics, logger *zap.Logger) *session {
	return &session{
		conn:      conn,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Render implements host.Target. It never blocks.
func (s *session) Render(view host.View) {
	view = s.sanitizer.View(view)
	s.mu.Lock()
	s.latest = &view
	s.mu.Unlock()
	s.signal()
}

func (s *session) enqueue(frame Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	s.signal()
}

func (s *session) sendError(message string) {
	s.enqueue(Frame{Type: TypeError, Message: message})
}

func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) stop() {
	s.once.Do(func() { close(s.done) })
}

// take drains pending frames, with the newest view last.
func (s *session) take() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.frames
	s.frames = nil
	if s.latest != nil {
		out = append(out, Frame{Type: TypeView, View: s.latest})
		s.latest = nil
	}
	return out
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.flush()
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("Ping failed", zap.Error(err))
				return
			}
		case <-s.wake:
			if err := s.flush(); err != nil {
				s.logger.Debug("Write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *session) flush() error {
	for _, frame := range s.take() {
		frame.Timestamp = time.Now().Unix()
		data, err := sonic.Marshal(frame)
		if err != nil {
			s.logger.Error("Failed to encode frame", zap.String("type", frame.Type), zap.Error(err))
			continue
		}
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordWSMessage("out", frame.Type)
		}
	}
	return nil
}
