package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// EchoKey is the echo.Context key holding the request logger.
const EchoKey = string(loggerKey)

// FromContext returns the request logger carried by ctx, or the global one.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromEcho returns the request logger, or the global one outside a request.
func FromEcho(c echo.Context) *zap.Logger {
	if l, ok := c.Get(EchoKey).(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}

// Attach makes l the request logger for both the echo handler chain and the
// request context, so provisioning code further down logs the same fields.
func Attach(c echo.Context, l *zap.Logger) {
	c.Set(EchoKey, l)
	req := c.Request()
	c.SetRequest(req.WithContext(WithContext(req.Context(), l)))
}
