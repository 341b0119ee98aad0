/**
 * 中间件:认证中间件
 * @author: amolani
 * @date: 2026.07.25
 * @description: 定义JWT认证中间件
 * @func:
 *   - GinJWTAuthMiddleware JWT认证中间件,校验Bearer令牌并注入用户信息
 */
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"linbomaster/internal/model"
	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/pkg/utils"
)

// tokenClaims 管理端令牌声明
// 令牌由学校服务器的管理界面签发，这里只做校验和身份提取
type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GinJWTAuthMiddleware JWT认证中间件
// 校验Authorization头中的Bearer令牌，通过后将username写入Gin上下文
// 使用方式: group.Use(middlewareManager.GinJWTAuthMiddleware())
func (m *MiddlewareManager) GinJWTAuthMiddleware() gin.HandlerFunc {
	secret := []byte(m.securityConfig.JWT.Secret)
	issuer := m.securityConfig.JWT.Issuer

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Missing authorization header")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		claims := &tokenClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			logger.LogWarn("JWT validation failed", c.GetHeader("X-Request-ID"), 0,
				utils.GetClientIP(c), c.Request.URL.Path, c.Request.Method, map[string]interface{}{
					"error": fmt.Sprintf("%v", err),
				})
			unauthorized(c, "Invalid or expired token")
			return
		}
		if issuer != "" {
			if iss, issErr := claims.GetIssuer(); issErr != nil || iss != issuer {
				unauthorized(c, "Invalid token issuer")
				return
			}
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// unauthorized 返回401并终止请求
func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.APIResponse{
		Code:    http.StatusUnauthorized,
		Status:  "error",
		Message: message,
	})
}
