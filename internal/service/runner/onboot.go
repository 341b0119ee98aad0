/**
 * 预约命令服务
 * @author: amolani
 * @date: 2026.07.21
 * @description: 主机下次启动时执行的预约命令登记与消费
 * @func: 登记(覆盖)、列出、取消(幂等)、客户端启动时取走即删
 */
package runner

import (
	"context"
	"time"

	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/pkg/linbocmd"
	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/repo"
	"linbomaster/internal/service/fleet"
)

// OnbootService 预约命令服务
// 命令不立即执行，而是登记到每主机一条的预约记录，客户端下次启动时拉取执行
type OnbootService struct {
	store       repo.OnbootStore
	hostService *fleet.HostService
}

// NewOnbootService 创建预约命令服务
func NewOnbootService(store repo.OnbootStore, hostService *fleet.HostService) *OnbootService {
	return &OnbootService{
		store:       store,
		hostService: hostService,
	}
}

// Schedule 为主机登记预约命令
// 命令串先过语法校验，目标主机必须已登记；同一主机的旧记录被整体覆盖
func (s *OnbootService) Schedule(ctx context.Context, hostname, rawCommands string) error {
	if _, err := linbocmd.Parse(rawCommands); err != nil {
		return &ValidationError{Field: "commands", Message: err.Error()}
	}

	host, err := s.hostService.GetHost(ctx, hostname)
	if err != nil {
		return err
	}
	if host == nil {
		return &ValidationError{Field: "hostname", Message: "host " + hostname + " is not registered"}
	}

	record := &runnerModel.DeferredCommand{
		Hostname:   hostname,
		RawContent: rawCommands,
		CreatedAt:  time.Now(),
	}
	if err := s.store.Put(ctx, record); err != nil {
		return err
	}

	logger.LogRunnerEvent("onboot_schedule", "", "", hostname, "deferred command scheduled", map[string]interface{}{
		"commands": rawCommands,
	})
	return nil
}

// Get 查询主机当前的预约命令，未登记时返回nil
func (s *OnbootService) Get(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error) {
	return s.store.Get(ctx, hostname)
}

// List 列出全部预约命令
func (s *OnbootService) List(ctx context.Context) ([]*runnerModel.DeferredCommand, error) {
	return s.store.List(ctx)
}

// Cancel 取消主机的预约命令
// 幂等：记录不存在也返回成功
func (s *OnbootService) Cancel(ctx context.Context, hostname string) error {
	if err := s.store.Delete(ctx, hostname); err != nil {
		return err
	}
	logger.LogRunnerEvent("onboot_cancel", "", "", hostname, "deferred command cancelled", nil)
	return nil
}

// Consume 客户端启动时取走预约命令
// 存储层原子取走即删除，保证一条预约命令至多被执行一次；无记录时返回nil
func (s *OnbootService) Consume(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error) {
	record, err := s.store.Take(ctx, hostname)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	logger.LogRunnerEvent("onboot_consume", "", "", hostname, "deferred command consumed", map[string]interface{}{
		"commands": record.RawContent,
	})
	return record, nil
}
