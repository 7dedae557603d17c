package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/logging"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID assigns every request an ID, reusing a well-formed incoming
// X-Request-ID, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := id.AcceptRequestID(c.GetHeader(RequestIDHeader))
		c.Set(requestIDKey, reqID)
		c.Header(RequestIDHeader, reqID.String())
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "" if none.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if reqID, ok := v.(id.RequestID); ok {
			return reqID.String()
		}
	}
	return ""
}

// Logger logs one line per request on the request's own logger.
func Logger(logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.Component("http")
		if reqID := GetRequestID(c); reqID != "" {
			log = logger.Request(reqID)
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("Request failed", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		default:
			log.Debug("Request served", fields...)
		}
	}
}
