// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"time"

	"ai-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 请求体日志的截断上限，避免把超长 prompt 整段写进日志。
const maxLoggedBodyBytes = 2048

// RequestLogger 是一个 Gin 中间件，用于记录请求日志。
// 响应体不做捕获：聊天流式响应是长连接，缓冲整个响应既无意义也浪费内存。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// 读取并重新缓存请求体，便于后续处理函数正常读取
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		c.Next()

		logged := requestBody
		if len(logged) > maxLoggedBodyBytes {
			logged = logged[:maxLoggedBodyBytes]
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", string(logged),
		)
	}
}
