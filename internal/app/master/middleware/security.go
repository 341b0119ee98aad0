/**
 * 中间件:安全中间件
 * @author: amolani
 * @date: 2026.07.25
 * @description: 定义安全中间件
 * @func:
 *   - GinCORSMiddleware CORS跨域资源共享中间件,处理跨域请求，设置必要的CORS头部信息
 *   - GinSecurityHeadersMiddleware 安全头部中间件,设置必要的安全头部信息，防止常见的安全漏洞
 */
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// GinCORSMiddleware CORS跨域资源共享中间件
// 处理跨域请求，设置必要的CORS头部信息
func (m *MiddlewareManager) GinCORSMiddleware() gin.HandlerFunc {
	cors := m.securityConfig.CORS
	return func(c *gin.Context) {
		if !cors.Enabled {
			c.Next()
			return
		}

		origin := c.Request.Header.Get("Origin")

		// 允许的来源（生产环境应该配置具体的域名）
		switch {
		case cors.AllowAllOrigins:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(origin, cors.AllowOrigins):
			c.Header("Access-Control-Allow-Origin", origin)
		}

		if len(cors.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(cors.AllowMethods, ", "))
		}
		if len(cors.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(cors.AllowHeaders, ", "))
		}
		if cors.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if cors.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(int(cors.MaxAge.Seconds())))
		}

		// 处理预检请求（OPTIONS方法）
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originAllowed 判断来源是否在允许列表内
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// GinSecurityHeadersMiddleware 安全头中间件
// 添加各种安全相关的HTTP头部，提高应用安全性
func (m *MiddlewareManager) GinSecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// X-Content-Type-Options: 防止MIME类型嗅探攻击
		c.Header("X-Content-Type-Options", "nosniff")

		// X-Frame-Options: 防止点击劫持攻击
		c.Header("X-Frame-Options", "DENY")

		// X-XSS-Protection: 启用浏览器XSS过滤器
		c.Header("X-XSS-Protection", "1; mode=block")

		// Referrer-Policy: 控制Referer头的发送策略
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Strict-Transport-Security: 强制HTTPS（仅在HTTPS环境下设置）
		if c.Request.TLS != nil || c.Request.Header.Get("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}
