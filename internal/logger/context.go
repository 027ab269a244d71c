package logger

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	ctxLogger    = "logger"
	ctxRequestID = "request_id"
	headerReqID  = "X-Request-ID"
)

// FromEcho retrieves the request logger, falling back to the global one.
func FromEcho(c echo.Context) *zap.Logger {
	if c != nil {
		if l, ok := c.Get(ctxLogger).(*zap.Logger); ok {
			return l
		}
	}
	return log
}

// RequestID returns the id assigned by Middleware, or "".
func RequestID(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}

// Middleware assigns X-Request-ID (keeping a caller-supplied one), stores a
// child logger tagged with it and writes one line per request.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		id := req.Header.Get(headerReqID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
			req.Header.Set(headerReqID, id)
		}
		c.Response().Header().Set(headerReqID, id)
		c.Set(ctxRequestID, id)

		l := log.With(zap.String("request_id", id))
		c.Set(ctxLogger, l)

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		l.Info("request",
			zap.String("method", req.Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.RealIP()),
		)
		return nil
	}
}
