/**
 * 初始化:作业运行器模块
 * @author: amolani
 * @date: 2026.07.25
 * @description: 作业运行器模块的依赖装配
 * @func: BuildRunnerModule
 */
package setup

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"linbomaster/internal/config"
	runnerHandler "linbomaster/internal/handler/runner"
	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/pkg/ws"
	"linbomaster/internal/repo"
	"linbomaster/internal/repo/memory"
	fleetRepo "linbomaster/internal/repo/mysql/fleet"
	runnerRepo "linbomaster/internal/repo/mysql/runner"
	redisRepo "linbomaster/internal/repo/redis"
	runnerService "linbomaster/internal/service/runner"
	"linbomaster/internal/service/runner/executor"
	"linbomaster/internal/service/runner/scheduler"
)

// BuildRunnerModule 构建作业运行器模块
// redisClient为nil时预约命令存储降级到内存实现(单实例/测试场景)
func BuildRunnerModule(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, fleet *FleetModule) *RunnerModule {
	logger.WithFields(map[string]interface{}{
		"path":      "setup.runner",
		"operation": "build_module",
		"func_name": "setup.BuildRunnerModule",
	}).Info("开始初始化作业运行器模块")

	// 1. Repository 初始化
	operationRepo := runnerRepo.NewOperationRepository(db)
	sessionRepo := runnerRepo.NewSessionRepository(db)
	hostRepo := fleetRepo.NewHostRepository(db)

	// 根据部署形态选择预约命令存储
	var onbootStore repo.OnbootStore
	if redisClient != nil {
		onbootStore = redisRepo.NewOnbootStore(redisClient)
	} else {
		onbootStore = memory.NewOnbootStore()
	}

	// 2. 进度推送中心
	wsCfg := cfg.WebSocket
	hub := ws.NewHub(wsCfg.ReadBufferSize, wsCfg.WriteBufferSize, wsCfg.MaxConnections, wsCfg.CheckOrigin)

	// 3. Service 初始化
	onbootService := runnerService.NewOnbootService(onbootStore, fleet.HostService)
	operationService := runnerService.NewOperationService(operationRepo, sessionRepo, fleet.HostService, onbootService)

	// 4. 执行器与调度引擎
	sshRunner := executor.NewSSHRunner(cfg.Runner)
	exec := executor.NewExecutor(sshRunner, sessionRepo, hub, cfg.Runner)
	schedulerService := scheduler.NewSchedulerService(cfg.Runner, operationRepo, sessionRepo, hostRepo, exec, hub)

	// 5. Handler 初始化
	operationHandler := runnerHandler.NewOperationHandler(operationService)
	onbootHandler := runnerHandler.NewOnbootHandler(onbootService)

	logger.WithFields(map[string]interface{}{
		"path":      "setup.runner",
		"operation": "build_module",
		"func_name": "setup.BuildRunnerModule",
	}).Info("作业运行器模块初始化完成")

	return &RunnerModule{
		OperationHandler: operationHandler,
		OnbootHandler:    onbootHandler,
		OperationService: operationService,
		OnbootService:    onbootService,
		SchedulerService: schedulerService,
		Hub:              hub,
	}
}
