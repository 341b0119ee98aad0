/**
 * 仓库层:机群数据访问
 * @author: amolani
 * @date: 2026.07.16
 * @description: 主机/教室/主机组数据访问
 * @func: 单纯数据访问,不应该包含业务逻辑
 */
package fleet

import (
	"context"
	"errors"

	fleetModel "linbomaster/internal/model/fleet"

	"gorm.io/gorm"
)

// HostRepository 主机仓库接口
type HostRepository interface {
	CreateHost(ctx context.Context, host *fleetModel.Host) error
	GetHostByHostname(ctx context.Context, hostname string) (*fleetModel.Host, error)
	GetHostsByHostnames(ctx context.Context, hostnames []string) ([]*fleetModel.Host, error)
	GetHostsByGroup(ctx context.Context, group string) ([]*fleetModel.Host, error)
	GetHostsByRoom(ctx context.Context, room string) ([]*fleetModel.Host, error)
	ListHosts(ctx context.Context) ([]*fleetModel.Host, error)
	DeleteHost(ctx context.Context, hostname string) error

	CreateRoom(ctx context.Context, room *fleetModel.Room) error
	ListRooms(ctx context.Context) ([]*fleetModel.Room, error)
	CreateGroup(ctx context.Context, group *fleetModel.Group) error
	ListGroups(ctx context.Context) ([]*fleetModel.Group, error)
}

type hostRepository struct {
	db *gorm.DB
}

// NewHostRepository 创建主机仓库实例
func NewHostRepository(db *gorm.DB) HostRepository {
	return &hostRepository{db: db}
}

// CreateHost 创建主机
func (r *hostRepository) CreateHost(ctx context.Context, host *fleetModel.Host) error {
	return r.db.WithContext(ctx).Create(host).Error
}

// GetHostByHostname 按主机名获取主机
func (r *hostRepository) GetHostByHostname(ctx context.Context, hostname string) (*fleetModel.Host, error) {
	var host fleetModel.Host
	err := r.db.WithContext(ctx).Where("hostname = ?", hostname).First(&host).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &host, nil
}

// GetHostsByHostnames 按主机名集合获取主机
func (r *hostRepository) GetHostsByHostnames(ctx context.Context, hostnames []string) ([]*fleetModel.Host, error) {
	if len(hostnames) == 0 {
		return nil, nil
	}
	var hosts []*fleetModel.Host
	err := r.db.WithContext(ctx).Where("hostname IN ?", hostnames).Find(&hosts).Error
	return hosts, err
}

// GetHostsByGroup 获取主机组全部主机
func (r *hostRepository) GetHostsByGroup(ctx context.Context, group string) ([]*fleetModel.Host, error) {
	var hosts []*fleetModel.Host
	err := r.db.WithContext(ctx).Where("host_group = ?", group).Order("hostname asc").Find(&hosts).Error
	return hosts, err
}

// GetHostsByRoom 获取教室全部主机
func (r *hostRepository) GetHostsByRoom(ctx context.Context, room string) ([]*fleetModel.Host, error) {
	var hosts []*fleetModel.Host
	err := r.db.WithContext(ctx).Where("room = ?", room).Order("hostname asc").Find(&hosts).Error
	return hosts, err
}

// ListHosts 列出全部主机
func (r *hostRepository) ListHosts(ctx context.Context) ([]*fleetModel.Host, error) {
	var hosts []*fleetModel.Host
	err := r.db.WithContext(ctx).Order("hostname asc").Find(&hosts).Error
	return hosts, err
}

// DeleteHost 删除主机
func (r *hostRepository) DeleteHost(ctx context.Context, hostname string) error {
	return r.db.WithContext(ctx).Where("hostname = ?", hostname).Delete(&fleetModel.Host{}).Error
}

// CreateRoom 创建教室
func (r *hostRepository) CreateRoom(ctx context.Context, room *fleetModel.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// ListRooms 列出全部教室
func (r *hostRepository) ListRooms(ctx context.Context) ([]*fleetModel.Room, error) {
	var rooms []*fleetModel.Room
	err := r.db.WithContext(ctx).Order("name asc").Find(&rooms).Error
	return rooms, err
}

// CreateGroup 创建主机组
func (r *hostRepository) CreateGroup(ctx context.Context, group *fleetModel.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// ListGroups 列出全部主机组
func (r *hostRepository) ListGroups(ctx context.Context) ([]*fleetModel.Group, error) {
	var groups []*fleetModel.Group
	err := r.db.WithContext(ctx).Order("name asc").Find(&groups).Error
	return groups, err
}
