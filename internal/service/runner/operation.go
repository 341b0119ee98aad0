/**
 * 作业服务
 * @author: amolani
 * @date: 2026.07.21
 * @description: 批量作业的提交、查询、取消
 * @func: 命令校验与目标解析、作业落库、预约转发、取消标记
 */
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/pkg/linbocmd"
	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/pkg/utils"
	runnerRepo "linbomaster/internal/repo/mysql/runner"
	"linbomaster/internal/service/fleet"
)

// SubmitRequest 作业提交请求
type SubmitRequest struct {
	Commands      string `json:"commands" binding:"required"`      // 逗号分隔的命令串
	Targets       string `json:"targets" binding:"required"`       // 目标选择器(主机列表/group:<名>/room:<名>)
	WakeOnLan     bool   `json:"wake_on_lan"`                      // 执行前是否发送WOL魔术包
	WakeDelaySecs int    `json:"wake_delay_secs"`                  // 唤醒等待秒数(0表示使用全局默认)
	Deferred      bool   `json:"deferred"`                         // 转为预约命令(下次启动执行)
	CreatedBy     string `json:"-"`                                // 提交人(从认证上下文取)
}

// OperationDetail 作业详情(含全部会话)
type OperationDetail struct {
	Operation *runnerModel.Operation `json:"operation"`
	Sessions  []*runnerModel.Session `json:"sessions"`
}

// OperationService 作业服务
// 只负责作业的提交与查询；状态推进全部由调度引擎完成
type OperationService struct {
	opRepo        runnerRepo.OperationRepository
	sessionRepo   runnerRepo.SessionRepository
	hostService   *fleet.HostService
	onbootService *OnbootService
}

// NewOperationService 创建作业服务
func NewOperationService(
	opRepo runnerRepo.OperationRepository,
	sessionRepo runnerRepo.SessionRepository,
	hostService *fleet.HostService,
	onbootService *OnbootService,
) *OperationService {
	return &OperationService{
		opRepo:        opRepo,
		sessionRepo:   sessionRepo,
		hostService:   hostService,
		onbootService: onbootService,
	}
}

// Submit 提交批量作业
// 命令串和目标选择器任一校验失败都整体拒绝，不产生任何记录
// deferred作业不进入调度：命令逐台登记为预约记录，作业直接落终态留档
func (s *OperationService) Submit(ctx context.Context, req *SubmitRequest) (*runnerModel.Operation, error) {
	list, err := linbocmd.Parse(req.Commands)
	if err != nil {
		return nil, &ValidationError{Field: "commands", Message: err.Error()}
	}
	if len(list.Commands()) == 0 {
		return nil, &ValidationError{Field: "commands", Message: "command list contains no executable command"}
	}

	hosts, err := s.hostService.ResolveSelector(ctx, req.Targets)
	if err != nil {
		return nil, &ValidationError{Field: "targets", Message: err.Error()}
	}

	hostnames := make([]string, 0, len(hosts))
	for _, h := range hosts {
		hostnames = append(hostnames, h.Hostname)
	}
	targetJSON, err := json.Marshal(hostnames)
	if err != nil {
		return nil, fmt.Errorf("failed to encode target hosts: %w", err)
	}

	operationID, err := utils.GenerateUUIDWithPrefix("op")
	if err != nil {
		return nil, fmt.Errorf("failed to generate operation id: %w", err)
	}

	op := &runnerModel.Operation{
		OperationID:   operationID,
		Commands:      list.String(),
		TargetHosts:   string(targetJSON),
		Selector:      req.Targets,
		WakeOnLan:     req.WakeOnLan,
		WakeDelaySecs: req.WakeDelaySecs,
		Deferred:      req.Deferred,
		Status:        runnerModel.OperationStatusPending,
		StatsTotal:    len(hostnames),
		StatsPending:  len(hostnames),
		CreatedBy:     req.CreatedBy,
	}

	if req.Deferred {
		return s.submitDeferred(ctx, op, hostnames)
	}

	if err := s.opRepo.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}

	logger.LogRunnerEvent("operation_submitted", operationID, "", "",
		"operation accepted", map[string]interface{}{
			"commands":    op.Commands,
			"targets":     req.Targets,
			"hosts":       len(hostnames),
			"wake_on_lan": req.WakeOnLan,
			"created_by":  req.CreatedBy,
		})
	return op, nil
}

// submitDeferred 预约路径：逐台登记预约命令并直接落档完成
// 目标主机在提交时已全部核验过，逐台登记不应失败；失败的主机计入failed
func (s *OperationService) submitDeferred(ctx context.Context, op *runnerModel.Operation, hostnames []string) (*runnerModel.Operation, error) {
	failed := 0
	for _, hostname := range hostnames {
		if err := s.onbootService.Schedule(ctx, hostname, op.Commands); err != nil {
			logger.LogRunnerEvent("onboot_schedule_failed", op.OperationID, "", hostname,
				"failed to schedule deferred command", map[string]interface{}{"error": err.Error()})
			failed++
		}
	}

	now := time.Now()
	op.StatsCompleted = len(hostnames) - failed
	op.StatsFailed = failed
	op.StatsPending = 0
	op.Progress = 100
	op.CompletedAt = &now
	switch {
	case failed == 0:
		op.Status = runnerModel.OperationStatusCompleted
	case failed == len(hostnames):
		op.Status = runnerModel.OperationStatusFailed
	default:
		op.Status = runnerModel.OperationStatusCompletedWithErrors
	}

	if err := s.opRepo.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}

	logger.LogRunnerEvent("operation_deferred", op.OperationID, "", "",
		"commands registered for next boot", map[string]interface{}{
			"commands": op.Commands,
			"hosts":    len(hostnames),
			"failed":   failed,
		})
	return op, nil
}

// Get 查询作业详情(含全部会话)
// 作业不存在时返回nil
func (s *OperationService) Get(ctx context.Context, operationID string) (*OperationDetail, error) {
	op, err := s.opRepo.GetOperationByID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, nil
	}
	sessions, err := s.sessionRepo.GetSessionsByOperationID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	return &OperationDetail{Operation: op, Sessions: sessions}, nil
}

// List 分页列出作业(最新在前)
func (s *OperationService) List(ctx context.Context, limit, offset int) ([]*runnerModel.Operation, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.opRepo.ListOperations(ctx, limit, offset)
}

// Cancel 请求取消作业
// 协作式取消：只置位标记，实际收敛由调度引擎完成；终态作业上的取消是幂等空操作
func (s *OperationService) Cancel(ctx context.Context, operationID string) (*runnerModel.Operation, error) {
	op, err := s.opRepo.GetOperationByID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, nil
	}
	if op.IsTerminal() {
		return op, nil
	}
	if err := s.opRepo.RequestCancel(ctx, operationID); err != nil {
		return nil, err
	}
	op.CancelRequested = true

	logger.LogRunnerEvent("operation_cancel_requested", operationID, "", "",
		"cancellation requested", nil)
	return op, nil
}
