/**
 * 作业运行器错误分类
 * @author: amolani
 * @date: 2026.07.18
 * @description: 运行器统一错误类型
 * @func: 校验错误/主机占用/连接失败/命令失败/超时/取消 六类错误的定义与归类
 */
package runner

import (
	"errors"
	"fmt"

	runnerModel "linbomaster/internal/model/runner"
)

// ValidationError 提交阶段的校验错误
// 带此错误拒绝的请求不会产生任何Operation/Session记录
type ValidationError struct {
	Field   string // 出错字段或token
	Message string // 错误说明
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// HostBusyError 目标主机持有非终态会话
// 不是作业失败：主机只是被推迟到之后的调度轮次
type HostBusyError struct {
	Hostname string
}

func (e *HostBusyError) Error() string {
	return fmt.Sprintf("host %s already has an active session", e.Hostname)
}

// ConnectionError 主机不可达或认证失败
// 立即判定会话失败，不执行任何命令，也不自动重试
type ConnectionError struct {
	Hostname string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Hostname, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommandExecutionError 远程命令返回非零退出码
// Index是失败命令在序列中的序号；之前命令在主机上的副作用不会回滚
type CommandExecutionError struct {
	Index    int    // 失败命令序号(从0开始)
	Command  string // 失败命令token
	ExitCode int    // 退出码
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("command %d (%s) exited with code %d", e.Index, e.Command, e.ExitCode)
}

// TimeoutError 单条命令或整个会话超时
// 聚合统计时与命令失败同等对待
type TimeoutError struct {
	Scope   string // "command" 或 "session"
	Index   int    // 超时命令序号(会话级超时时为-1)
	Command string // 超时命令token(会话级超时时为空)
}

func (e *TimeoutError) Error() string {
	if e.Scope == "command" {
		return fmt.Sprintf("command %d (%s) timed out", e.Index, e.Command)
	}
	return "session exceeded maximum duration"
}

// ErrCancelled 会话/作业被显式取消
var ErrCancelled = errors.New("cancelled by request")

// ErrorKindOf 将执行错误归类为会话的ErrorKind
func ErrorKindOf(err error) string {
	var connErr *ConnectionError
	var cmdErr *CommandExecutionError
	var timeoutErr *TimeoutError
	var busyErr *HostBusyError

	switch {
	case errors.As(err, &connErr):
		return runnerModel.ErrorKindConnection
	case errors.As(err, &cmdErr):
		return runnerModel.ErrorKindCommand
	case errors.As(err, &timeoutErr):
		return runnerModel.ErrorKindTimeout
	case errors.As(err, &busyErr):
		return runnerModel.ErrorKindHostBusy
	case errors.Is(err, ErrCancelled):
		return runnerModel.ErrorKindCancelled
	default:
		// 未知错误按命令失败处理，保证聚合统计不漏计
		return runnerModel.ErrorKindCommand
	}
}
