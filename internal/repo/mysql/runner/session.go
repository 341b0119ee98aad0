/**
 * 仓库层:会话数据访问
 * @author: amolani
 * @date: 2026.07.16
 * @description: 执行会话数据访问
 * @func: 单纯数据访问,不应该包含业务逻辑
 */
package runner

import (
	"context"
	"time"

	runnerModel "linbomaster/internal/model/runner"

	"gorm.io/gorm"
)

// 非终态集合，忙主机判定和崩溃恢复共用
var nonTerminalStatuses = []string{
	runnerModel.SessionStatusPending,
	runnerModel.SessionStatusWaitingForHost,
	runnerModel.SessionStatusConnecting,
	runnerModel.SessionStatusRunning,
}

// SessionRepository 会话仓库接口
type SessionRepository interface {
	CreateSession(ctx context.Context, session *runnerModel.Session) error
	GetSessionByID(ctx context.Context, sessionID string) (*runnerModel.Session, error)
	GetSessionsByOperationID(ctx context.Context, operationID string) ([]*runnerModel.Session, error)
	// GetBusyHostnames 返回所有持有非终态会话的主机名(主机互斥判定)
	GetBusyHostnames(ctx context.Context) (map[string]bool, error)
	// HasActiveSessionForHost 判断主机是否持有非终态会话
	HasActiveSessionForHost(ctx context.Context, hostname string) (bool, error)
	UpdateSession(ctx context.Context, session *runnerModel.Session) error
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	// TouchHeartbeat 刷新会话心跳
	TouchHeartbeat(ctx context.Context, sessionID string) error
	// GetStaleSessions 返回心跳早于deadline的执行中会话(崩溃恢复用)
	GetStaleSessions(ctx context.Context, deadline time.Time) ([]*runnerModel.Session, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话仓库实例
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// CreateSession 创建会话
func (r *sessionRepository) CreateSession(ctx context.Context, session *runnerModel.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetSessionByID 获取指定会话
func (r *sessionRepository) GetSessionByID(ctx context.Context, sessionID string) (*runnerModel.Session, error) {
	var session runnerModel.Session
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetSessionsByOperationID 获取作业的全部会话
func (r *sessionRepository) GetSessionsByOperationID(ctx context.Context, operationID string) ([]*runnerModel.Session, error) {
	var sessions []*runnerModel.Session
	err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("hostname asc").
		Find(&sessions).Error
	return sessions, err
}

// GetBusyHostnames 返回所有持有非终态会话的主机名
func (r *sessionRepository) GetBusyHostnames(ctx context.Context) (map[string]bool, error) {
	var hostnames []string
	err := r.db.WithContext(ctx).Model(&runnerModel.Session{}).
		Where("status IN ?", nonTerminalStatuses).
		Distinct().
		Pluck("hostname", &hostnames).Error
	if err != nil {
		return nil, err
	}
	busy := make(map[string]bool, len(hostnames))
	for _, h := range hostnames {
		busy[h] = true
	}
	return busy, nil
}

// HasActiveSessionForHost 判断主机是否持有非终态会话
func (r *sessionRepository) HasActiveSessionForHost(ctx context.Context, hostname string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&runnerModel.Session{}).
		Where("hostname = ? AND status IN ?", hostname, nonTerminalStatuses).
		Count(&count).Error
	return count > 0, err
}

// UpdateSession 整体更新会话
func (r *sessionRepository) UpdateSession(ctx context.Context, session *runnerModel.Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// UpdateSessionStatus 更新会话状态
func (r *sessionRepository) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	switch status {
	case runnerModel.SessionStatusConnecting:
		updates["started_at"] = time.Now()
	case runnerModel.SessionStatusCompleted,
		runnerModel.SessionStatusFailed,
		runnerModel.SessionStatusCancelled:
		updates["finished_at"] = time.Now()
	}
	return r.db.WithContext(ctx).Model(&runnerModel.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
}

// TouchHeartbeat 刷新会话心跳
func (r *sessionRepository) TouchHeartbeat(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&runnerModel.Session{}).
		Where("session_id = ?", sessionID).
		Update("heartbeat_at", time.Now()).Error
}

// GetStaleSessions 返回心跳过期的执行中会话
func (r *sessionRepository) GetStaleSessions(ctx context.Context, deadline time.Time) ([]*runnerModel.Session, error) {
	var sessions []*runnerModel.Session
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{runnerModel.SessionStatusConnecting, runnerModel.SessionStatusRunning}).
		Where("heartbeat_at IS NULL OR heartbeat_at < ?", deadline).
		Find(&sessions).Error
	return sessions, err
}
