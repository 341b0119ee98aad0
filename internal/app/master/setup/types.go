/**
 * 初始化
 * @author: amolani
 * @date: 2026.07.25
 * @description: 包含master程序初始化相关的类型定义
 * @func: setup层只负责依赖装配(Repository → Service → Handler)，不侵入业务逻辑
 */
package setup

import (
	fleetHandler "linbomaster/internal/handler/fleet"
	runnerHandler "linbomaster/internal/handler/runner"
	"linbomaster/internal/pkg/ws"
	fleetService "linbomaster/internal/service/fleet"
	runnerService "linbomaster/internal/service/runner"
	"linbomaster/internal/service/runner/scheduler"
)

// FleetModule 是主机清单模块的聚合输出
// 路由层通过它取用Handler，其他模块(作业提交的目标解析)复用HostService
type FleetModule struct {
	// Handlers
	HostHandler *fleetHandler.HostHandler

	// Services
	HostService *fleetService.HostService
}

// RunnerModule 是作业运行器模块的聚合输出
// 包含立即执行路径(Operation+Scheduler)和预约路径(Onboot)的全部组件
type RunnerModule struct {
	// Handlers
	OperationHandler *runnerHandler.OperationHandler
	OnbootHandler    *runnerHandler.OnbootHandler

	// Services
	OperationService *runnerService.OperationService
	OnbootService    *runnerService.OnbootService

	// SchedulerService 调度引擎，由应用层负责Start/Stop
	SchedulerService scheduler.SchedulerService

	// Hub 进度推送中心，路由层挂载WebSocket端点
	Hub *ws.Hub
}
