/**
 * 路由:路由管理器
 * @author: amolani
 * @date: 2026.07.25
 * @description: 路由管理器，包含Router结构体、NewRouter函数和SetupRoutes主函数
 * @func:
 */
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"linbomaster/internal/app/master/middleware"
	"linbomaster/internal/app/master/setup"
	"linbomaster/internal/config"
)

// Router 路由管理器
type Router struct {
	config            *config.Config
	engine            *gin.Engine
	middlewareManager *middleware.MiddlewareManager

	// 各业务模块(setup层装配完成)
	fleetModule  *setup.FleetModule
	runnerModule *setup.RunnerModule
}

// NewRouter 创建路由管理器实例
func NewRouter(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Router {
	// 初始化中间件管理器
	middlewareManager := middleware.NewMiddlewareManager(&cfg.Security)

	// 各模块依赖装配
	fleetModule := setup.BuildFleetModule(db)
	runnerModule := setup.BuildRunnerModule(db, redisClient, cfg, fleetModule)

	// 创建Gin引擎
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{
		config:            cfg,
		engine:            engine,
		middlewareManager: middlewareManager,
		fleetModule:       fleetModule,
		runnerModule:      runnerModule,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes() {
	// 设置全局中间件
	r.engine.Use(r.middlewareManager.GinCORSMiddleware())
	r.engine.Use(r.middlewareManager.GinSecurityHeadersMiddleware())
	r.engine.Use(r.middlewareManager.GinLoggingMiddleware())

	// API版本路由组
	// /api/v1
	api := r.engine.Group("/api")
	v1 := api.Group("/v1")

	// 作业运行器路由（需要JWT认证）
	r.setupRunnerRoutes(v1)

	// 主机清单路由（需要JWT认证）
	r.setupFleetRoutes(v1)

	// WebSocket进度推送
	r.setupProgressRoutes()

	// 健康检查路由
	r.setupHealthRoutes(api)
}

// GetEngine 获取Gin引擎实例
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetRunnerModule 获取作业运行器模块(应用层启动调度引擎用)
func (r *Router) GetRunnerModule() *setup.RunnerModule {
	return r.runnerModule
}
