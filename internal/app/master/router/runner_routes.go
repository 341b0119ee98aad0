/**
 * 路由:作业运行器路由
 * @author: amolani
 * @date: 2026.07.25
 * @description: 批量作业与预约命令的路由注册
 * @func: setupRunnerRoutes、setupProgressRoutes
 */
package router

import (
	"github.com/gin-gonic/gin"
)

// setupRunnerRoutes 设置作业运行器路由
func (r *Router) setupRunnerRoutes(v1 *gin.RouterGroup) {
	// 批量作业管理
	operations := v1.Group("/operations")
	operations.Use(r.middlewareManager.GinJWTAuthMiddleware())
	{
		operations.POST("", r.runnerModule.OperationHandler.SubmitOperation)            // 提交批量作业
		operations.GET("", r.runnerModule.OperationHandler.ListOperations)              // 分页列出作业
		operations.GET("/:id", r.runnerModule.OperationHandler.GetOperation)            // 作业详情(含会话)
		operations.POST("/:id/cancel", r.runnerModule.OperationHandler.CancelOperation) // 请求取消
	}

	// 预约命令管理
	onboot := v1.Group("/onboot")
	onboot.Use(r.middlewareManager.GinJWTAuthMiddleware())
	{
		onboot.POST("", r.runnerModule.OnbootHandler.ScheduleOnboot)                // 登记预约命令(覆盖)
		onboot.GET("", r.runnerModule.OnbootHandler.ListOnboot)                     // 列出全部预约命令
		onboot.DELETE("/:hostname", r.runnerModule.OnbootHandler.CancelOnboot)      // 取消预约命令(幂等)
	}

	// 客户端接口：主机启动时取走自己的预约命令
	// 客户端处于PXE启动环境，不走管理端JWT认证
	client := v1.Group("/client")
	{
		client.POST("/onboot/:hostname/consume", r.runnerModule.OnbootHandler.ConsumeOnboot)
	}
}

// setupProgressRoutes 设置WebSocket进度推送路由
func (r *Router) setupProgressRoutes() {
	if !r.config.WebSocket.Enabled {
		return
	}
	path := r.config.WebSocket.Path
	if path == "" {
		path = "/ws/progress"
	}
	r.engine.GET(path, func(c *gin.Context) {
		r.runnerModule.Hub.HandleSubscribe(c.Writer, c.Request)
	})
}
