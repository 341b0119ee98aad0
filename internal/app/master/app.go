/**
 * 应用程序
 * @author: amolani
 * @date: 2026.07.25
 * @description: master应用程序的组装与生命周期管理
 * @func: 配置加载、日志初始化、存储连接、路由装配、调度引擎启停
 */
package master

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linbomaster/internal/app/master/router"
	"linbomaster/internal/config"
	"linbomaster/internal/pkg/database"
	"linbomaster/internal/pkg/logger"
)

// App 应用程序结构体
type App struct {
	config *config.Config
	router *router.Router

	db          *gorm.DB
	redisClient *redis.Client

	schedulerCancel context.CancelFunc
}

// NewApp 创建新的应用程序实例
// configPath/env为空时按环境变量和默认路径解析
func NewApp(configPath, env string) (*App, error) {
	// 加载配置
	cfg, err := config.LoadConfig(configPath, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化日志
	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	// 连接MySQL
	db, err := database.NewMySQLConnection(&cfg.Database.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mysql: %w", err)
	}

	// 连接Redis(预约命令存储)
	redisClient, err := database.NewRedisConnection(&cfg.Database.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	// 装配路由(内部完成各模块的依赖装配)
	r := router.NewRouter(db, redisClient, cfg)
	r.SetupRoutes()

	return &App{
		config:      cfg,
		router:      r,
		db:          db,
		redisClient: redisClient,
	}, nil
}

// GetConfig 获取配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetRouter 获取路由器实例
func (a *App) GetRouter() *router.Router {
	return a.router
}

// Start 启动应用程序后台组件
// HTTP服务器由cmd层启动，这里负责调度引擎和配置热加载
func (a *App) Start() error {
	// 配置热加载
	if err := config.StartConfigWatcher("", a.config.App.Environment); err != nil {
		logger.Warnf("config watcher not started: %v", err)
	} else {
		config.AddConfigReloadCallback(config.LogConfigReloadCallback)
		config.AddConfigReloadCallback(config.RunnerConfigReloadCallback)
	}

	// 启动调度引擎
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	a.router.GetRunnerModule().SchedulerService.Start(ctx)

	logger.LogSystemEvent("app", "start", "application started", logrus.InfoLevel, nil)
	return nil
}

// Stop 停止应用程序后台组件
// 先停调度引擎(等待在途会话worker退出)，再断开存储连接
func (a *App) Stop() error {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
	}
	a.router.GetRunnerModule().SchedulerService.Stop()
	a.router.GetRunnerModule().Hub.Close()

	config.StopConfigWatcher()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logger.Warnf("failed to close redis client: %v", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warnf("failed to close mysql connection: %v", err)
			}
		}
	}

	logger.LogSystemEvent("app", "stop", "application stopped", logrus.InfoLevel, nil)
	return nil
}
