/**
 * 中间件:中间件管理器
 * @author: amolani
 * @date: 2026.07.25
 * @description: 中间件统一管理
 * @func: 聚合安全配置，向路由层提供各中间件构造方法
 */
package middleware

import (
	"linbomaster/internal/config"
)

// MiddlewareManager 中间件管理器
type MiddlewareManager struct {
	securityConfig *config.SecurityConfig
}

// NewMiddlewareManager 创建中间件管理器
func NewMiddlewareManager(securityConfig *config.SecurityConfig) *MiddlewareManager {
	return &MiddlewareManager{
		securityConfig: securityConfig,
	}
}
