/**
 * 中间件:日志相关中间件
 * @author: amolani
 * @date: 2026.07.25
 * @description: 定义日志中间件
 * @func:
 *   - GinLoggingMiddleware Gin日志中间件[同时把客户端IP存储到Gin上下文,供后续使用]
 */
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/pkg/utils"
)

// GinLoggingMiddleware Gin日志中间件
// 记录所有HTTP请求的访问日志和错误日志
// 使用方式: router.Use(middlewareManager.GinLoggingMiddleware())
func (m *MiddlewareManager) GinLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 提取并格式化客户端IP
		clientIP := utils.GetClientIP(c)
		requestID := c.GetHeader("X-Request-ID")
		userAgent := c.GetHeader("User-Agent")

		// 存储到Gin上下文，供后续handler使用
		c.Set("client_ip", clientIP)

		// 处理请求
		c.Next()

		// 记录访问日志
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		username := c.GetString("username")

		logger.LogBusinessOperation("http_request", 0, username, clientIP, requestID, "success", "API Request", map[string]interface{}{
			"operation":     "http_request",
			"method":        c.Request.Method,
			"url":           c.Request.URL.String(),
			"status_code":   statusCode,
			"duration":      duration.Milliseconds(),
			"client_ip":     clientIP,
			"username":      username,
			"user_agent":    userAgent,
			"X-Request-ID":  requestID,
			"referer":       c.Request.Referer(),
			"request_size":  c.Request.ContentLength,
			"response_size": int64(c.Writer.Size()),
			"timestamp":     logger.NowFormatted(),
		})

		// 如果是错误状态码，记录错误日志
		if statusCode >= 400 {
			errorMsg := http.StatusText(statusCode)
			if errs := c.Errors; len(errs) > 0 {
				errorMsg = errs.String()
			}

			logger.LogError(fmt.Errorf("HTTP %d: %s", statusCode, errorMsg), requestID, 0, clientIP, "http_request", c.Request.Method, map[string]interface{}{
				"operation":    "http_request",
				"method":       c.Request.Method,
				"url":          c.Request.URL.String(),
				"status_code":  statusCode,
				"username":     username,
				"client_ip":    clientIP,
				"user_agent":   userAgent,
				"X-Request-ID": requestID,
				"timestamp":    logger.NowFormatted(),
			})
		}
	}
}
