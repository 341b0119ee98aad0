/**
 * 模型:批量作业
 * @author: amolani
 * @date: 2026.07.16
 * @description: 管理员提交的一次批量作业请求
 * @func: Operation实体、状态枚举、聚合统计
 */
package runner

import (
	"time"

	"linbomaster/internal/model/basemodel"
)

// 作业状态
// 状态机单向推进：pending -> (waking) -> running -> 终态，终态之后不再变化
const (
	OperationStatusPending             = "pending"               // 已创建，等待调度
	OperationStatusWaking              = "waking"                // 正在唤醒目标主机
	OperationStatusRunning             = "running"               // 会话已开始分发
	OperationStatusCompleted           = "completed"             // 全部会话成功
	OperationStatusCompletedWithErrors = "completed_with_errors" // 部分会话失败
	OperationStatusFailed              = "failed"                // 无任何会话成功
	OperationStatusCancelled           = "cancelled"             // 在分发前被取消
)

// Operation 批量作业实体
// 目标主机集合在提交时由主机/教室/主机组选择器解析固化，调度期间不再变动
type Operation struct {
	basemodel.BaseModel

	OperationID string `json:"operation_id" gorm:"uniqueIndex;not null;size:40;comment:作业唯一标识"`
	Commands    string `json:"commands" gorm:"not null;size:512;comment:原始命令串(已通过语法校验)"`
	TargetHosts string `json:"target_hosts" gorm:"type:json;comment:目标主机名列表(JSON)"`
	Selector    string `json:"selector" gorm:"size:128;comment:提交时使用的选择器(主机/教室/组)"`

	// 执行选项
	WakeOnLan       bool `json:"wake_on_lan" gorm:"default:false;comment:执行前是否发送WOL魔术包"`
	WakeDelaySecs   int  `json:"wake_delay_secs" gorm:"default:0;comment:唤醒等待秒数(0表示使用全局默认)"`
	Deferred        bool `json:"deferred" gorm:"default:false;comment:是否转为预约命令(下次启动执行)"`

	Status   string `json:"status" gorm:"index;size:24;default:'pending';comment:作业状态"`
	Progress int    `json:"progress" gorm:"default:0;comment:进度0-100(由会话完成数推导)"`

	// 聚合统计：completed+failed+pending 恒等于 total
	StatsTotal     int `json:"stats_total" gorm:"default:0;comment:目标主机总数"`
	StatsCompleted int `json:"stats_completed" gorm:"default:0;comment:成功主机数"`
	StatsFailed    int `json:"stats_failed" gorm:"default:0;comment:失败主机数"`
	StatsPending   int `json:"stats_pending" gorm:"default:0;comment:未完成主机数"`

	CancelRequested bool `json:"cancel_requested" gorm:"default:false;comment:是否已请求取消"`

	StartedAt   *time.Time `json:"started_at" gorm:"comment:开始调度时间"`
	CompletedAt *time.Time `json:"completed_at" gorm:"comment:终态时间"`

	CreatedBy string `json:"created_by" gorm:"size:64;comment:提交人"`
}

// TableName 定义表名
func (Operation) TableName() string {
	return "operations"
}

// IsTerminal 判断作业是否已达终态
func (o *Operation) IsTerminal() bool {
	switch o.Status {
	case OperationStatusCompleted, OperationStatusCompletedWithErrors,
		OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

// Stats 聚合统计视图
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// GetStats 返回聚合统计
func (o *Operation) GetStats() Stats {
	return Stats{
		Total:     o.StatsTotal,
		Completed: o.StatsCompleted,
		Failed:    o.StatsFailed,
		Pending:   o.StatsPending,
	}
}
