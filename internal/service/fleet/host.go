/**
 * 主机清单服务
 * @author: amolani
 * @date: 2026.07.20
 * @description: 主机/教室/主机组的管理与目标选择器解析
 * @func: 主机CRUD、教室/组管理、选择器(host/group/room)到具体主机列表的解析
 */
package fleet

import (
	"context"
	"fmt"
	"strings"

	fleetModel "linbomaster/internal/model/fleet"
	fleetRepo "linbomaster/internal/repo/mysql/fleet"
)

// 选择器前缀
// 无前缀时按主机名列表(逗号分隔)处理
const (
	selectorPrefixGroup = "group:"
	selectorPrefixRoom  = "room:"
)

// HostService 主机清单服务
type HostService struct {
	hostRepo fleetRepo.HostRepository
}

// NewHostService 创建主机清单服务
func NewHostService(hostRepo fleetRepo.HostRepository) *HostService {
	return &HostService{hostRepo: hostRepo}
}

// CreateHost 登记主机
func (s *HostService) CreateHost(ctx context.Context, host *fleetModel.Host) error {
	if host.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if host.MAC == "" {
		return fmt.Errorf("mac address is required")
	}
	// 主机名唯一
	existing, err := s.hostRepo.GetHostByHostname(ctx, host.Hostname)
	if err != nil {
		return fmt.Errorf("failed to check hostname: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("host %s already exists", host.Hostname)
	}
	return s.hostRepo.CreateHost(ctx, host)
}

// GetHost 按主机名查询主机，不存在时返回nil
func (s *HostService) GetHost(ctx context.Context, hostname string) (*fleetModel.Host, error) {
	return s.hostRepo.GetHostByHostname(ctx, hostname)
}

// ListHosts 列出全部主机
func (s *HostService) ListHosts(ctx context.Context) ([]*fleetModel.Host, error) {
	return s.hostRepo.ListHosts(ctx)
}

// DeleteHost 删除主机
func (s *HostService) DeleteHost(ctx context.Context, hostname string) error {
	return s.hostRepo.DeleteHost(ctx, hostname)
}

// CreateRoom 登记教室
func (s *HostService) CreateRoom(ctx context.Context, room *fleetModel.Room) error {
	if room.Name == "" {
		return fmt.Errorf("room name is required")
	}
	return s.hostRepo.CreateRoom(ctx, room)
}

// ListRooms 列出全部教室
func (s *HostService) ListRooms(ctx context.Context) ([]*fleetModel.Room, error) {
	return s.hostRepo.ListRooms(ctx)
}

// CreateGroup 登记主机组
func (s *HostService) CreateGroup(ctx context.Context, group *fleetModel.Group) error {
	if group.Name == "" {
		return fmt.Errorf("group name is required")
	}
	return s.hostRepo.CreateGroup(ctx, group)
}

// ListGroups 列出全部主机组
func (s *HostService) ListGroups(ctx context.Context) ([]*fleetModel.Group, error) {
	return s.hostRepo.ListGroups(ctx)
}

// ResolveSelector 将目标选择器解析为具体主机列表
// 支持三种形式：
//   - "group:<name>"  主机组内全部主机
//   - "room:<name>"   教室内全部主机
//   - "<h1>,<h2>,..." 显式主机名列表
//
// 任何未登记的引用(未知主机名/空组/空教室)都返回错误，解析结果不会部分成功
func (s *HostService) ResolveSelector(ctx context.Context, selector string) ([]*fleetModel.Host, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("empty target selector")
	}

	switch {
	case strings.HasPrefix(selector, selectorPrefixGroup):
		name := strings.TrimPrefix(selector, selectorPrefixGroup)
		hosts, err := s.hostRepo.GetHostsByGroup(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group %s: %w", name, err)
		}
		if len(hosts) == 0 {
			return nil, fmt.Errorf("group %s is unknown or empty", name)
		}
		return hosts, nil

	case strings.HasPrefix(selector, selectorPrefixRoom):
		name := strings.TrimPrefix(selector, selectorPrefixRoom)
		hosts, err := s.hostRepo.GetHostsByRoom(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve room %s: %w", name, err)
		}
		if len(hosts) == 0 {
			return nil, fmt.Errorf("room %s is unknown or empty", name)
		}
		return hosts, nil

	default:
		return s.resolveHostnames(ctx, selector)
	}
}

// resolveHostnames 解析逗号分隔的主机名列表
// 全部主机名必须已登记，去重后保持提交顺序
func (s *HostService) resolveHostnames(ctx context.Context, selector string) ([]*fleetModel.Host, error) {
	names := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, raw := range strings.Split(selector, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("empty hostname in selector")
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	hosts, err := s.hostRepo.GetHostsByHostnames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostnames: %w", err)
	}

	// 逐个核对，未登记的主机名直接整批拒绝
	byName := make(map[string]*fleetModel.Host, len(hosts))
	for _, h := range hosts {
		byName[h.Hostname] = h
	}
	ordered := make([]*fleetModel.Host, 0, len(names))
	for _, name := range names {
		h, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("host %s is not registered", name)
		}
		ordered = append(ordered, h)
	}
	return ordered, nil
}
