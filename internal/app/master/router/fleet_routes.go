/**
 * 路由:主机清单路由
 * @author: amolani
 * @date: 2026.07.25
 * @description: 受管主机/教室/主机组的路由注册
 * @func: setupFleetRoutes
 */
package router

import (
	"github.com/gin-gonic/gin"
)

// setupFleetRoutes 设置主机清单路由
func (r *Router) setupFleetRoutes(v1 *gin.RouterGroup) {
	fleet := v1.Group("/fleet")
	fleet.Use(r.middlewareManager.GinJWTAuthMiddleware())

	// 主机管理
	hosts := fleet.Group("/hosts")
	{
		hosts.GET("", r.fleetModule.HostHandler.ListHosts)                // 列出全部主机
		hosts.POST("", r.fleetModule.HostHandler.CreateHost)              // 登记主机
		hosts.GET("/:hostname", r.fleetModule.HostHandler.GetHost)        // 主机详情
		hosts.DELETE("/:hostname", r.fleetModule.HostHandler.DeleteHost)  // 删除主机
	}

	// 教室管理
	rooms := fleet.Group("/rooms")
	{
		rooms.GET("", r.fleetModule.HostHandler.ListRooms)   // 列出全部教室
		rooms.POST("", r.fleetModule.HostHandler.CreateRoom) // 登记教室
	}

	// 主机组管理
	groups := fleet.Group("/groups")
	{
		groups.GET("", r.fleetModule.HostHandler.ListGroups)   // 列出全部主机组
		groups.POST("", r.fleetModule.HostHandler.CreateGroup) // 登记主机组
	}
}
