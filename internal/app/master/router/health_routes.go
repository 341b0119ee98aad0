/**
 * 路由:健康检查路由
 * @author: amolani
 * @date: 2026.07.25
 * @description: 健康/就绪/存活检查与调度引擎状态
 * @func: setupHealthRoutes
 */
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linbomaster/internal/pkg/logger"
)

// setupHealthRoutes 设置健康检查路由
func (r *Router) setupHealthRoutes(api *gin.RouterGroup) {
	// 健康检查
	api.GET("/health", r.healthCheck)
	// 就绪检查
	api.GET("/ready", r.readinessCheck)
	// 存活检查
	api.GET("/live", r.livenessCheck)

	// 调度引擎控制（需要JWT认证）
	schedulerGroup := api.Group("/v1/scheduler")
	schedulerGroup.Use(r.middlewareManager.GinJWTAuthMiddleware())
	{
		schedulerGroup.GET("/status", r.schedulerStatus)
		schedulerGroup.POST("/pause", r.schedulerPause)
		schedulerGroup.POST("/resume", r.schedulerResume)
	}
}

// 健康检查处理器
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": logger.NowFormatted(),
	})
}

func (r *Router) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": logger.NowFormatted(),
	})
}

func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": logger.NowFormatted(),
	})
}

// schedulerStatus 调度引擎状态
func (r *Router) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"paused":      r.runnerModule.SchedulerService.IsPaused(),
		"subscribers": r.runnerModule.Hub.SubscriberCount(),
		"timestamp":   logger.NowFormatted(),
	})
}

// schedulerPause 暂停新会话派发(在途会话继续执行)
func (r *Router) schedulerPause(c *gin.Context) {
	r.runnerModule.SchedulerService.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// schedulerResume 恢复会话派发
func (r *Router) schedulerResume(c *gin.Context) {
	r.runnerModule.SchedulerService.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}
