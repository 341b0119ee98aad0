/**
 * 会话执行器
 * @author: amolani
 * @date: 2026.07.22
 * @description: 在单台主机上按序执行一次会话的命令序列
 * @func: 连接主机、逐条执行命令(快速失败)、心跳刷新、终态写回与事件广播
 */
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"linbomaster/internal/config"
	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/pkg/linbocmd"
	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/pkg/ws"
	runnerRepo "linbomaster/internal/repo/mysql/runner"
	runnerService "linbomaster/internal/service/runner"
)

// 修饰标志对应的远程环境变量
const (
	envNoauto     = "LINBO_NOAUTO=yes"
	envDisableGUI = "LINBO_DISABLEGUI=yes"
)

// RemoteShell 已建立的远程执行通道
// Run对ctx取消敏感：取消后应尽快放弃等待并返回ctx错误
type RemoteShell interface {
	// Run 执行单条命令，返回合并输出和退出码
	// 命令返回非零退出码时 exitCode>0 且 err 为 nil，由调用方判定失败
	Run(ctx context.Context, args []string, env []string) (output string, exitCode int, err error)
	// Close 关闭通道，中断尚未返回的Run
	Close() error
}

// CommandRunner 远程执行传输层
// 生产用SSH实现；测试用内存实现注入各类失败
type CommandRunner interface {
	// Connect 与目标主机建立执行通道
	Connect(ctx context.Context, addr string) (RemoteShell, error)
}

// Target 一次会话的执行目标
type Target struct {
	Hostname string // 主机名
	IP       string // 连接地址(为空时回退主机名)
	SSHPort  int    // SSH端口(0表示使用全局默认)
}

// Executor 会话执行器
// 无状态，同一实例可被工作池的多个goroutine并发使用
type Executor struct {
	runner      CommandRunner
	sessionRepo runnerRepo.SessionRepository
	hub         *ws.Hub
	cfg         config.RunnerConfig
}

// NewExecutor 创建会话执行器
func NewExecutor(runner CommandRunner, sessionRepo runnerRepo.SessionRepository, hub *ws.Hub, cfg config.RunnerConfig) *Executor {
	return &Executor{
		runner:      runner,
		sessionRepo: sessionRepo,
		hub:         hub,
		cfg:         cfg,
	}
}

// Execute 执行一次会话
// 命令逐条顺序执行，任何一条失败立即终止后续命令(已执行命令的副作用不回滚)
// 不做任何自动重试；终态(completed/failed/cancelled)写回后返回
func (e *Executor) Execute(ctx context.Context, session *runnerModel.Session, target Target) {
	// 整个会话受最长执行时间约束
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SessionMaxDuration)
	defer cancel()

	list, err := linbocmd.Parse(session.Commands)
	if err != nil {
		// 命令串在提交时已通过校验，这里失败说明记录被外部改坏
		e.fail(session, -1, 0, runnerModel.ErrorKindCommand, fmt.Sprintf("stored commands are invalid: %v", err))
		return
	}

	env := flagEnv(list)

	// 连接阶段
	e.transition(session, runnerModel.SessionStatusConnecting, 0)

	addr := e.dialAddr(target)
	shell, err := e.runner.Connect(ctx, addr)
	if err != nil {
		kind, msg := e.classifyConnectError(ctx, target.Hostname, err)
		e.fail(session, -1, 0, kind, msg)
		return
	}
	defer shell.Close()

	now := time.Now()
	session.StartedAt = &now
	e.transition(session, runnerModel.SessionStatusRunning, 0)

	commands := list.Commands()
	var logBuf strings.Builder

	for i, cmd := range commands {
		select {
		case <-ctx.Done():
			e.finishOnContext(ctx, session, i, cmd, logBuf.String())
			return
		default:
		}

		output, exitCode, runErr := e.runCommand(ctx, shell, cmd, env)
		if output != "" {
			logBuf.WriteString(fmt.Sprintf("=== %s ===\n%s\n", cmd.Token(), output))
			session.Log = logBuf.String()
		}

		if runErr != nil {
			if ctx.Err() != nil {
				e.finishOnContext(ctx, session, i, cmd, logBuf.String())
				return
			}
			if errors.Is(runErr, context.DeadlineExceeded) {
				// 会话整体仍在时限内，是单条命令超时
				timeoutErr := &runnerService.TimeoutError{Scope: "command", Index: i, Command: cmd.Token()}
				e.fail(session, i, 0, runnerModel.ErrorKindTimeout, timeoutErr.Error())
				return
			}
			// 传输层中途断开，按连接失败归类
			e.fail(session, i, 0, runnerModel.ErrorKindConnection,
				fmt.Sprintf("command %s: %v", cmd.Token(), runErr))
			return
		}
		if exitCode != 0 {
			// 快速失败：后续命令不再执行
			cmdErr := &runnerService.CommandExecutionError{Index: i, Command: cmd.Token(), ExitCode: exitCode}
			e.fail(session, i, exitCode, runnerModel.ErrorKindCommand, cmdErr.Error())
			return
		}

		// 每完成一条命令刷新心跳并推进进度
		session.Progress = (i + 1) * 100 / len(commands)
		session.HeartbeatAt = timePtr(time.Now())
		if err := e.sessionRepo.UpdateSession(context.Background(), session); err != nil {
			logger.LogRunnerEvent("session_persist_failed", session.OperationID, session.SessionID, session.Hostname,
				"failed to persist session progress", map[string]interface{}{"error": err.Error()})
		}
	}

	e.complete(session)
}

// runCommand 执行单条命令，受单条命令超时约束
func (e *Executor) runCommand(ctx context.Context, shell RemoteShell, cmd linbocmd.Command, env []string) (string, int, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
	defer cancel()
	return shell.Run(cmdCtx, cmd.RemoteArgs(), env)
}

// finishOnContext 根据ctx的终止原因写回超时或取消终态
func (e *Executor) finishOnContext(ctx context.Context, session *runnerModel.Session, index int, cmd linbocmd.Command, log string) {
	session.Log = log
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		timeoutErr := &runnerService.TimeoutError{Scope: "session", Index: -1}
		e.fail(session, index, 0, runnerModel.ErrorKindTimeout, timeoutErr.Error())
		return
	}
	e.fail(session, index, 0, runnerModel.ErrorKindCancelled,
		fmt.Sprintf("cancelled while running %s", cmd.Token()))
}

// classifyConnectError 区分连接超时与其他连接失败
func (e *Executor) classifyConnectError(ctx context.Context, hostname string, err error) (string, string) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return runnerModel.ErrorKindCancelled, "cancelled while connecting"
	}
	connErr := &runnerService.ConnectionError{Hostname: hostname, Err: err}
	return runnerModel.ErrorKindConnection, connErr.Error()
}

// dialAddr 计算连接地址，主机未指定端口时回退全局默认端口
func (e *Executor) dialAddr(target Target) string {
	host := target.IP
	if host == "" {
		host = target.Hostname
	}
	port := target.SSHPort
	if port == 0 {
		port = e.cfg.SSH.Port
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// transition 推进会话状态并广播
func (e *Executor) transition(session *runnerModel.Session, status string, progress int) {
	session.Status = status
	session.Progress = progress
	session.HeartbeatAt = timePtr(time.Now())
	if err := e.sessionRepo.UpdateSession(context.Background(), session); err != nil {
		logger.LogRunnerEvent("session_persist_failed", session.OperationID, session.SessionID, session.Hostname,
			"failed to persist session status", map[string]interface{}{"error": err.Error(), "status": status})
	}
	if status == runnerModel.SessionStatusRunning {
		e.hub.Publish(ws.ProgressEvent{
			Type:        ws.EventSessionRunning,
			OperationID: session.OperationID,
			SessionID:   session.SessionID,
			Hostname:    session.Hostname,
			Status:      status,
			Progress:    progress,
		})
	}
}

// complete 写回成功终态
func (e *Executor) complete(session *runnerModel.Session) {
	now := time.Now()
	session.Status = runnerModel.SessionStatusCompleted
	session.Progress = 100
	session.FinishedAt = &now
	if err := e.sessionRepo.UpdateSession(context.Background(), session); err != nil {
		logger.LogRunnerEvent("session_persist_failed", session.OperationID, session.SessionID, session.Hostname,
			"failed to persist session completion", map[string]interface{}{"error": err.Error()})
	}
	logger.LogRunnerEvent("session_completed", session.OperationID, session.SessionID, session.Hostname,
		"session completed", nil)
	e.hub.Publish(ws.ProgressEvent{
		Type:        ws.EventSessionCompleted,
		OperationID: session.OperationID,
		SessionID:   session.SessionID,
		Hostname:    session.Hostname,
		Status:      session.Status,
		Progress:    100,
	})
}

// fail 写回失败/取消终态
// index是失败命令序号(-1表示未进入命令阶段)，exitCode仅对命令失败有意义
func (e *Executor) fail(session *runnerModel.Session, index, exitCode int, kind, message string) {
	now := time.Now()
	if kind == runnerModel.ErrorKindCancelled {
		session.Status = runnerModel.SessionStatusCancelled
	} else {
		session.Status = runnerModel.SessionStatusFailed
	}
	session.FailedCommand = index
	session.ExitCode = exitCode
	session.ErrorKind = kind
	session.ErrorMsg = message
	session.FinishedAt = &now
	if err := e.sessionRepo.UpdateSession(context.Background(), session); err != nil {
		logger.LogRunnerEvent("session_persist_failed", session.OperationID, session.SessionID, session.Hostname,
			"failed to persist session failure", map[string]interface{}{"error": err.Error()})
	}
	logger.LogRunnerEvent("session_failed", session.OperationID, session.SessionID, session.Hostname,
		message, map[string]interface{}{"error_kind": kind, "failed_command": index})
	e.hub.Publish(ws.ProgressEvent{
		Type:        ws.EventSessionFailed,
		OperationID: session.OperationID,
		SessionID:   session.SessionID,
		Hostname:    session.Hostname,
		Status:      session.Status,
		Progress:    session.Progress,
		Reason:      message,
	})
}

// flagEnv 把修饰标志转换为远程环境变量
func flagEnv(list linbocmd.CommandList) []string {
	var env []string
	if list.HasFlag(linbocmd.KindNoauto) {
		env = append(env, envNoauto)
	}
	if list.HasFlag(linbocmd.KindDisableGUI) {
		env = append(env, envDisableGUI)
	}
	return env
}

func timePtr(t time.Time) *time.Time {
	return &t
}
