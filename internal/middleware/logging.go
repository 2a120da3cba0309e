package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const loggerKey = "logger"

// RequestLogger logs every request with its latency and status, and makes
// a request-scoped logger available through Logger.
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			log := base.With(zap.String("request_id", GetRequestID(c)))
			c.Set(loggerKey, log)

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.String("ip", c.RealIP()),
				zap.Int("status_code", status),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch {
			case status >= 500:
				log.Error("Request completed with server error", fields...)
			case status >= 400:
				log.Warn("Request completed with client error", fields...)
			default:
				log.Info("Request completed successfully", fields...)
			}
			return nil
		}
	}
}

// Logger returns the request-scoped logger, or the global one outside a
// request.
func Logger(c echo.Context) *zap.Logger {
	if l, ok := c.Get(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.L()
}
