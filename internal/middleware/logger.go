package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		// 处理请求
		c.Next()

		if path == "/health" {
			return
		}

		// 记录日志（流媒体请求耗时等于整个传输时长，属正常现象）
		latency := time.Since(start)
		status := c.Writer.Status()

		// 避免把流地址中携带的 token 写入日志
		query := c.Request.URL.RawQuery
		if strings.Contains(query, "token=") {
			query = "token=***"
		}
		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[%s] %s %s %d %d %v",
			c.Request.Method,
			path,
			c.ClientIP(),
			status,
			c.Writer.Size(),
			latency,
		)
	}
}
