/**
 * 模型:执行会话
 * @author: amolani
 * @date: 2026.07.16
 * @description: 单台主机对一次作业的执行实例
 * @func: Session实体、状态枚举、错误种类
 */
package runner

import (
	"time"

	"linbomaster/internal/model/basemodel"
)

// 会话状态
const (
	SessionStatusPending        = "pending"          // 已创建，等待工作池空位
	SessionStatusWaitingForHost = "waiting_for_host" // 主机被其他会话占用，等待释放
	SessionStatusConnecting     = "connecting"       // 正在建立SSH连接
	SessionStatusRunning        = "running"          // 命令序列执行中
	SessionStatusCompleted      = "completed"        // 全部命令成功
	SessionStatusFailed         = "failed"           // 连接失败或某条命令失败
	SessionStatusCancelled      = "cancelled"        // 开始前被取消
)

// 会话错误种类
// 聚合作业状态时 connection/command/timeout 同等计为失败，cancelled 单独呈现
const (
	ErrorKindConnection = "connection" // 主机不可达或认证失败，未执行任何命令
	ErrorKindCommand    = "command"    // 某条命令返回非零退出码
	ErrorKindTimeout    = "timeout"    // 单条命令或整个会话超时
	ErrorKindCancelled  = "cancelled"  // 显式取消
	ErrorKindHostBusy   = "host_busy"  // 主机持续被占用，重试轮数耗尽
)

// Session 执行会话实体
// 运行期间由执行该会话的worker独占，写回终态后不再修改
type Session struct {
	basemodel.BaseModel

	SessionID   string `json:"session_id" gorm:"uniqueIndex;not null;size:40;comment:会话唯一标识"`
	OperationID string `json:"operation_id" gorm:"index;not null;size:40;comment:所属作业ID"`
	Hostname    string `json:"hostname" gorm:"index;not null;size:64;comment:目标主机名"`
	Commands    string `json:"commands" gorm:"not null;size:512;comment:命令串副本(可按主机特化)"`

	Status   string `json:"status" gorm:"index;size:24;default:'pending';comment:会话状态"`
	Progress int    `json:"progress" gorm:"default:0;comment:进度0-100(按命令完成数推导)"`

	// 失败信息：FailedCommand是失败命令在序列中的序号(从0开始，-1表示无)
	FailedCommand int    `json:"failed_command" gorm:"default:-1;comment:失败命令序号"`
	ExitCode      int    `json:"exit_code" gorm:"default:0;comment:失败命令的退出码"`
	ErrorKind     string `json:"error_kind" gorm:"size:16;comment:错误种类"`
	ErrorMsg      string `json:"error_msg" gorm:"type:text;comment:错误信息"`

	Log string `json:"log" gorm:"type:text;comment:命令输出日志"`

	// 心跳：执行器每完成一条命令刷新一次，崩溃恢复依据它识别僵死会话
	HeartbeatAt *time.Time `json:"heartbeat_at" gorm:"index;comment:心跳时间"`

	BusyTicks int `json:"busy_ticks" gorm:"default:0;comment:因主机占用被跳过的轮数"`

	StartedAt  *time.Time `json:"started_at" gorm:"comment:开始执行时间"`
	FinishedAt *time.Time `json:"finished_at" gorm:"comment:终态时间"`
}

// TableName 定义表名
func (Session) TableName() string {
	return "sessions"
}

// IsTerminal 判断会话是否已达终态
func (s *Session) IsTerminal() bool {
	switch s.Status {
	case SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}
