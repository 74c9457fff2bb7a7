package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"recipe-book-go/pkg/log"
)

// RequestLogger 是一个 Gin 中间件，用于记录请求的结构化访问日志。
// 不记录请求体和响应体，菜谱正文和对话内容可能较大且含用户数据。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.FullPath(),
		)
	}
}
