/**
 * 初始化:主机清单模块
 * @author: amolani
 * @date: 2026.07.25
 * @description: 主机清单模块的依赖装配
 * @func: BuildFleetModule
 */
package setup

import (
	"gorm.io/gorm"

	fleetHandler "linbomaster/internal/handler/fleet"
	"linbomaster/internal/pkg/logger"
	fleetRepo "linbomaster/internal/repo/mysql/fleet"
	fleetService "linbomaster/internal/service/fleet"
)

// BuildFleetModule 构建主机清单模块
func BuildFleetModule(db *gorm.DB) *FleetModule {
	logger.WithFields(map[string]interface{}{
		"path":      "setup.fleet",
		"operation": "build_module",
		"func_name": "setup.BuildFleetModule",
	}).Info("开始初始化主机清单模块")

	// 1. Repository 初始化
	hostRepo := fleetRepo.NewHostRepository(db)

	// 2. Service 初始化
	hostService := fleetService.NewHostService(hostRepo)

	// 3. Handler 初始化
	hostHandler := fleetHandler.NewHostHandler(hostService)

	logger.WithFields(map[string]interface{}{
		"path":      "setup.fleet",
		"operation": "build_module",
		"func_name": "setup.BuildFleetModule",
	}).Info("主机清单模块初始化完成")

	return &FleetModule{
		HostHandler: hostHandler,
		HostService: hostService,
	}
}
