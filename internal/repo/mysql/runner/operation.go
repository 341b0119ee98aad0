/**
 * 仓库层:作业数据访问
 * @author: amolani
 * @date: 2026.07.16
 * @description: 批量作业数据访问
 * @func: 单纯数据访问,不应该包含业务逻辑
 */
package runner

import (
	"context"
	"errors"
	"time"

	runnerModel "linbomaster/internal/model/runner"

	"gorm.io/gorm"
)

// OperationRepository 作业仓库接口
type OperationRepository interface {
	CreateOperation(ctx context.Context, op *runnerModel.Operation) error
	GetOperationByID(ctx context.Context, operationID string) (*runnerModel.Operation, error)
	// GetPendingOperations 按创建时间升序返回待调度作业(FIFO公平)
	GetPendingOperations(ctx context.Context, limit int) ([]*runnerModel.Operation, error)
	GetRunningOperations(ctx context.Context) ([]*runnerModel.Operation, error)
	ListOperations(ctx context.Context, limit, offset int) ([]*runnerModel.Operation, int64, error)
	UpdateOperation(ctx context.Context, op *runnerModel.Operation) error
	UpdateOperationStatus(ctx context.Context, operationID, status string) error
	// RequestCancel 置位取消标记，由调度器在下一轮处理
	RequestCancel(ctx context.Context, operationID string) error
}

type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository 创建作业仓库实例
func NewOperationRepository(db *gorm.DB) OperationRepository {
	return &operationRepository{db: db}
}

// CreateOperation 创建作业
func (r *operationRepository) CreateOperation(ctx context.Context, op *runnerModel.Operation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// GetOperationByID 获取指定作业
func (r *operationRepository) GetOperationByID(ctx context.Context, operationID string) (*runnerModel.Operation, error) {
	var op runnerModel.Operation
	err := r.db.WithContext(ctx).Where("operation_id = ?", operationID).First(&op).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

// GetPendingOperations 获取待调度作业
func (r *operationRepository) GetPendingOperations(ctx context.Context, limit int) ([]*runnerModel.Operation, error) {
	var ops []*runnerModel.Operation
	err := r.db.WithContext(ctx).
		Where("status = ?", runnerModel.OperationStatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&ops).Error
	return ops, err
}

// GetRunningOperations 获取调度中的作业(含waking，崩溃恢复用)
func (r *operationRepository) GetRunningOperations(ctx context.Context) ([]*runnerModel.Operation, error) {
	var ops []*runnerModel.Operation
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{runnerModel.OperationStatusWaking, runnerModel.OperationStatusRunning}).
		Order("created_at asc").
		Find(&ops).Error
	return ops, err
}

// ListOperations 分页列出作业(最新在前)
func (r *operationRepository) ListOperations(ctx context.Context, limit, offset int) ([]*runnerModel.Operation, int64, error) {
	var ops []*runnerModel.Operation
	var total int64

	if err := r.db.WithContext(ctx).Model(&runnerModel.Operation{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&ops).Error
	return ops, total, err
}

// UpdateOperation 整体更新作业
func (r *operationRepository) UpdateOperation(ctx context.Context, op *runnerModel.Operation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

// UpdateOperationStatus 更新作业状态
func (r *operationRepository) UpdateOperationStatus(ctx context.Context, operationID, status string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	switch status {
	case runnerModel.OperationStatusRunning:
		updates["started_at"] = time.Now()
	case runnerModel.OperationStatusCompleted,
		runnerModel.OperationStatusCompletedWithErrors,
		runnerModel.OperationStatusFailed,
		runnerModel.OperationStatusCancelled:
		updates["completed_at"] = time.Now()
	}
	return r.db.WithContext(ctx).Model(&runnerModel.Operation{}).
		Where("operation_id = ?", operationID).
		Updates(updates).Error
}

// RequestCancel 置位取消标记
func (r *operationRepository) RequestCancel(ctx context.Context, operationID string) error {
	return r.db.WithContext(ctx).Model(&runnerModel.Operation{}).
		Where("operation_id = ?", operationID).
		Update("cancel_requested", true).Error
}
