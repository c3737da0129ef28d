package middleware

import (
	"time"

	"moneytrack/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger 使用 zerolog 记录每个请求
func RequestLogger() gin.HandlerFunc {
	return RequestLoggerWith(logger.Component(logger.ComponentHTTP))
}

// RequestLoggerWith 使用指定的 logger 记录请求
func RequestLoggerWith(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 不记录查询串，SSE 的 access_token 走查询参数
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Uint("user_id", GetCurrentUserID(c)).
			Msg("request")
	}
}
