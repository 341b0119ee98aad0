/**
 * 会话调度引擎
 * @author: amolani
 * @date: 2026.07.23
 * @description: 轮询驱动的作业调度：唤醒、会话派发、聚合、崩溃恢复
 * @func: 调度循环、主机占用互斥、有界工作池派发、作业终态聚合、取消处理
 */
package scheduler

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"linbomaster/internal/config"
	fleetModel "linbomaster/internal/model/fleet"
	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/pkg/logger"
	"linbomaster/internal/pkg/utils"
	"linbomaster/internal/pkg/wol"
	"linbomaster/internal/pkg/ws"
	fleetRepo "linbomaster/internal/repo/mysql/fleet"
	runnerRepo "linbomaster/internal/repo/mysql/runner"
	"linbomaster/internal/service/runner/executor"
)

// SchedulerService 调度引擎服务接口
type SchedulerService interface {
	Start(ctx context.Context)
	Stop()
	Pause()
	Resume()
	IsPaused() bool
}

type schedulerService struct {
	cfg         config.RunnerConfig
	opRepo      runnerRepo.OperationRepository
	sessionRepo runnerRepo.SessionRepository
	hostRepo    fleetRepo.HostRepository
	exec        *executor.Executor
	hub         *ws.Hub

	// 工作池：令牌在会话派发时获取、worker退出时归还
	workerSem chan struct{}
	workerWg  sync.WaitGroup

	stopChan chan struct{}
	stopOnce sync.Once

	// mu保护以下派发期共享状态
	// 同一轮内的派发决策和worker终态回写并发发生，占用表必须同步访问
	mu        sync.Mutex
	paused    bool
	claimed   map[string]bool               // 本轮内已被占用的主机(含数据库中的非终态会话)
	wakeUntil map[string]time.Time          // operationID -> 唤醒等待截止时间
	busyTicks map[string]int                // operationID+"/"+hostname -> 因占用被跳过的轮数
	cancels   map[string]context.CancelFunc // sessionID -> 执行中会话的取消函数
	inflight  map[string]bool               // sessionID -> 本进程内有worker在执行
}

// NewSchedulerService 创建调度引擎服务
func NewSchedulerService(
	cfg config.RunnerConfig,
	opRepo runnerRepo.OperationRepository,
	sessionRepo runnerRepo.SessionRepository,
	hostRepo fleetRepo.HostRepository,
	exec *executor.Executor,
	hub *ws.Hub,
) SchedulerService {
	return &schedulerService{
		cfg:         cfg,
		opRepo:      opRepo,
		sessionRepo: sessionRepo,
		hostRepo:    hostRepo,
		exec:        exec,
		hub:         hub,
		workerSem:   make(chan struct{}, cfg.MaxConcurrentSessions),
		stopChan:    make(chan struct{}),
		wakeUntil:   make(map[string]time.Time),
		busyTicks:   make(map[string]int),
		cancels:     make(map[string]context.CancelFunc),
		inflight:    make(map[string]bool),
	}
}

// Start 启动调度引擎
// 先执行一次崩溃恢复，再进入轮询循环
func (s *schedulerService) Start(ctx context.Context) {
	logger.LogInfo("Starting Session Scheduler...", "", 0, "", "service.scheduler.Start", "", map[string]interface{}{
		"poll_interval":           s.cfg.PollInterval.String(),
		"max_concurrent_sessions": s.cfg.MaxConcurrentSessions,
	})
	s.recoverStaleSessions(ctx)
	go s.loop(ctx)
}

// Stop 停止调度引擎，等待在途会话的worker退出
func (s *schedulerService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.workerWg.Wait()
	logger.LogInfo("Session Scheduler Stopped", "", 0, "", "service.scheduler.Stop", "", nil)
}

// Pause 暂停调度
// 只停止新会话的派发，在途会话继续执行到终态
func (s *schedulerService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	logger.LogInfo("Session Scheduler Paused", "", 0, "", "service.scheduler.Pause", "", nil)
}

// Resume 恢复调度
func (s *schedulerService) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	logger.LogInfo("Session Scheduler Resumed", "", 0, "", "service.scheduler.Resume", "", nil)
}

// IsPaused 判断调度是否处于暂停状态
func (s *schedulerService) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// loop 调度循环
func (s *schedulerService) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if s.IsPaused() {
				continue
			}
			s.schedule(ctx)
		}
	}
}

// schedule 执行单次调度
// 作业按创建时间先后处理：同一主机被多个作业竞争时，先创建的作业先占用
func (s *schedulerService) schedule(ctx context.Context) {
	busy, err := s.sessionRepo.GetBusyHostnames(ctx)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.schedule", "REPO", map[string]interface{}{
			"msg": "failed to load busy hostnames",
		})
		return
	}
	s.mu.Lock()
	s.claimed = busy
	s.mu.Unlock()

	running, err := s.opRepo.GetRunningOperations(ctx)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.schedule", "REPO", map[string]interface{}{
			"msg": "failed to load running operations",
		})
		return
	}
	pending, err := s.opRepo.GetPendingOperations(ctx, 100)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.schedule", "REPO", map[string]interface{}{
			"msg": "failed to load pending operations",
		})
		return
	}

	ops := append(running, pending...)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	for _, op := range ops {
		s.processOperation(ctx, op)
	}
}

// processOperation 处理单个作业的一轮调度
func (s *schedulerService) processOperation(ctx context.Context, op *runnerModel.Operation) {
	if op.CancelRequested {
		s.handleCancel(ctx, op)
		return
	}

	switch op.Status {
	case runnerModel.OperationStatusPending:
		if op.WakeOnLan {
			s.startWake(ctx, op)
			return
		}
		s.dispatchSessions(ctx, op)

	case runnerModel.OperationStatusWaking:
		if !s.wakeWindowExpired(op) {
			return
		}
		s.dispatchSessions(ctx, op)

	case runnerModel.OperationStatusRunning:
		s.dispatchSessions(ctx, op)
	}
}

// startWake 进入唤醒阶段：广播魔术包并设定等待窗口
// 发送是尽力而为，主机最终没起来会在连接阶段判定为会话失败
func (s *schedulerService) startWake(ctx context.Context, op *runnerModel.Operation) {
	hosts, err := s.loadTargets(ctx, op)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.startWake", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}

	for _, host := range hosts {
		if err := wol.Send(host.MAC, s.cfg.WOL.BroadcastAddr); err != nil {
			logger.LogRunnerEvent("wol_send_failed", op.OperationID, "", host.Hostname,
				"failed to send magic packet", map[string]interface{}{"error": err.Error(), "mac": host.MAC})
		}
	}

	delay := time.Duration(op.WakeDelaySecs) * time.Second
	if delay <= 0 {
		delay = s.cfg.WOL.DefaultWakeDelay
	}
	s.mu.Lock()
	s.wakeUntil[op.OperationID] = time.Now().Add(delay)
	s.mu.Unlock()

	if err := s.opRepo.UpdateOperationStatus(ctx, op.OperationID, runnerModel.OperationStatusWaking); err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.startWake", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}
	op.Status = runnerModel.OperationStatusWaking
	logger.LogRunnerEvent("operation_waking", op.OperationID, "", "",
		"magic packets sent, waiting for hosts to boot", map[string]interface{}{
			"hosts":      len(hosts),
			"wake_delay": delay.String(),
		})
}

// wakeWindowExpired 判断唤醒等待窗口是否结束
// 进程重启后窗口记录丢失时按已结束处理，直接进入派发
func (s *schedulerService) wakeWindowExpired(op *runnerModel.Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.wakeUntil[op.OperationID]
	if !ok {
		return true
	}
	if time.Now().Before(deadline) {
		return false
	}
	delete(s.wakeUntil, op.OperationID)
	return true
}

// markRunning 将作业推进到running并广播
// 只在首个会话真正开始派发时调用，开始时间一并落库
func (s *schedulerService) markRunning(ctx context.Context, op *runnerModel.Operation) {
	if op.Status == runnerModel.OperationStatusRunning {
		return
	}
	now := time.Now()
	op.Status = runnerModel.OperationStatusRunning
	if op.StartedAt == nil {
		op.StartedAt = &now
	}
	if err := s.opRepo.UpdateOperation(ctx, op); err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.markRunning", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}
	s.hub.Publish(ws.ProgressEvent{
		Type:        ws.EventOperationRunning,
		OperationID: op.OperationID,
		Status:      op.Status,
		Progress:    op.Progress,
	})
}

// dispatchSessions 为作业的目标主机创建并派发会话
// 占用主机被跳过并计入重试轮数；工作池满时剩余主机等下一轮
func (s *schedulerService) dispatchSessions(ctx context.Context, op *runnerModel.Operation) {
	hosts, err := s.loadTargets(ctx, op)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.dispatchSessions", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}

	sessions, err := s.sessionRepo.GetSessionsByOperationID(ctx, op.OperationID)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.dispatchSessions", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}
	byHost := make(map[string]*runnerModel.Session, len(sessions))
	for _, sess := range sessions {
		byHost[sess.Hostname] = sess
	}

	launched := false
	for _, host := range hosts {
		if sess, exists := byHost[host.Hostname]; exists {
			// 进程重启遗留的pending会话：续派原记录，不新建
			if sess.Status == runnerModel.SessionStatusPending && !s.isInflight(sess.SessionID) {
				if s.redispatchSession(ctx, op, host, sess) {
					launched = true
				}
			}
			continue
		}
		if s.tryDispatch(ctx, op, host) {
			launched = true
		}
	}

	// 首个会话开始派发后作业才算running
	if launched {
		s.markRunning(ctx, op)
	}

	s.aggregate(ctx, op)
}

// tryDispatch 尝试为单台主机派发会话，返回是否真正派发
func (s *schedulerService) tryDispatch(ctx context.Context, op *runnerModel.Operation, host *fleetModel.Host) bool {
	busyKey := op.OperationID + "/" + host.Hostname

	s.mu.Lock()
	if s.claimed[host.Hostname] {
		// 主机被其他会话占用：跳过本轮，计数耗尽后判定失败
		s.busyTicks[busyKey]++
		exhausted := s.busyTicks[busyKey] > s.cfg.BusyRetryTicks
		ticks := s.busyTicks[busyKey]
		s.mu.Unlock()
		if exhausted {
			s.failBusyHost(ctx, op, host.Hostname, ticks)
		}
		return false
	}
	s.claimed[host.Hostname] = true
	s.mu.Unlock()

	// 工作池满时释放占用，主机留到下一轮
	select {
	case s.workerSem <- struct{}{}:
	default:
		s.mu.Lock()
		delete(s.claimed, host.Hostname)
		s.mu.Unlock()
		return false
	}

	session, err := s.createSession(ctx, op, host.Hostname)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.tryDispatch", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
			"hostname":     host.Hostname,
		})
		s.mu.Lock()
		delete(s.claimed, host.Hostname)
		s.mu.Unlock()
		<-s.workerSem
		return false
	}

	s.mu.Lock()
	delete(s.busyTicks, busyKey)
	s.mu.Unlock()

	s.launchWorker(ctx, session, host)
	return true
}

// redispatchSession 续派进程重启前已创建但从未执行的会话
// 主机占用记录本来就是这条会话自己挂着的，不走占用判定
func (s *schedulerService) redispatchSession(ctx context.Context, op *runnerModel.Operation, host *fleetModel.Host, session *runnerModel.Session) bool {
	select {
	case s.workerSem <- struct{}{}:
	default:
		return false
	}

	logger.LogRunnerEvent("session_redispatched", op.OperationID, session.SessionID, host.Hostname,
		"resuming session left pending by a restart", nil)
	s.launchWorker(ctx, session, host)
	return true
}

// launchWorker 把会话交给工作池执行，调用前须已持有一个工作池令牌
func (s *schedulerService) launchWorker(ctx context.Context, session *runnerModel.Session, host *fleetModel.Host) {
	target := executor.Target{
		Hostname: host.Hostname,
		IP:       host.IP,
		SSHPort:  host.SSHPort,
	}

	s.mu.Lock()
	s.inflight[session.SessionID] = true
	s.mu.Unlock()

	s.workerWg.Add(1)
	go func() {
		defer s.workerWg.Done()
		defer func() { <-s.workerSem }()

		wctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancels[session.SessionID] = cancel
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, session.SessionID)
			delete(s.inflight, session.SessionID)
			s.mu.Unlock()
			cancel()
		}()

		s.exec.Execute(wctx, session, target)
	}()
}

// isInflight 判断会话是否有本进程内的worker在执行
func (s *schedulerService) isInflight(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[sessionID]
}

// createSession 创建会话记录
func (s *schedulerService) createSession(ctx context.Context, op *runnerModel.Operation, hostname string) (*runnerModel.Session, error) {
	sessionID, err := utils.GenerateUUIDWithPrefix("sess")
	if err != nil {
		return nil, err
	}
	session := &runnerModel.Session{
		SessionID:     sessionID,
		OperationID:   op.OperationID,
		Hostname:      hostname,
		Commands:      op.Commands,
		Status:        runnerModel.SessionStatusPending,
		FailedCommand: -1,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// failBusyHost 主机占用重试轮数耗尽，直接落一条失败会话
func (s *schedulerService) failBusyHost(ctx context.Context, op *runnerModel.Operation, hostname string, ticks int) {
	sessionID, err := utils.GenerateUUIDWithPrefix("sess")
	if err != nil {
		return
	}
	now := time.Now()
	session := &runnerModel.Session{
		SessionID:     sessionID,
		OperationID:   op.OperationID,
		Hostname:      hostname,
		Commands:      op.Commands,
		Status:        runnerModel.SessionStatusFailed,
		FailedCommand: -1,
		ErrorKind:     runnerModel.ErrorKindHostBusy,
		ErrorMsg:      "host remained busy, retry budget exhausted",
		BusyTicks:     ticks,
		FinishedAt:    &now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.failBusyHost", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
			"hostname":     hostname,
		})
		return
	}
	s.mu.Lock()
	delete(s.busyTicks, op.OperationID+"/"+hostname)
	s.mu.Unlock()

	logger.LogRunnerEvent("session_failed", op.OperationID, sessionID, hostname,
		"host busy retry budget exhausted", map[string]interface{}{"busy_ticks": ticks})
	s.hub.Publish(ws.ProgressEvent{
		Type:        ws.EventSessionFailed,
		OperationID: op.OperationID,
		SessionID:   sessionID,
		Hostname:    hostname,
		Status:      session.Status,
		Reason:      session.ErrorMsg,
	})
}

// handleCancel 处理取消请求
// 未派发的目标主机落取消态会话；在途会话收到取消信号但以真实结果为准
func (s *schedulerService) handleCancel(ctx context.Context, op *runnerModel.Operation) {
	if op.IsTerminal() {
		return
	}

	hosts, err := s.loadTargets(ctx, op)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.handleCancel", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}
	sessions, err := s.sessionRepo.GetSessionsByOperationID(ctx, op.OperationID)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.handleCancel", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}
	byHost := make(map[string]*runnerModel.Session, len(sessions))
	for _, sess := range sessions {
		byHost[sess.Hostname] = sess
	}

	now := time.Now()
	for _, host := range hosts {
		sess, exists := byHost[host.Hostname]
		if !exists {
			// 尚未派发：直接落取消态会话
			sessionID, idErr := utils.GenerateUUIDWithPrefix("sess")
			if idErr != nil {
				continue
			}
			cancelled := &runnerModel.Session{
				SessionID:     sessionID,
				OperationID:   op.OperationID,
				Hostname:      host.Hostname,
				Commands:      op.Commands,
				Status:        runnerModel.SessionStatusCancelled,
				FailedCommand: -1,
				ErrorKind:     runnerModel.ErrorKindCancelled,
				ErrorMsg:      "cancelled before dispatch",
				FinishedAt:    &now,
			}
			if err := s.sessionRepo.CreateSession(ctx, cancelled); err != nil {
				logger.LogError(err, "", 0, "", "service.scheduler.handleCancel", "REPO", map[string]interface{}{
					"operation_id": op.OperationID,
					"hostname":     host.Hostname,
				})
			}
			continue
		}
		if sess.IsTerminal() {
			continue
		}
		// 在途会话：发取消信号，worker写回的真实终态优先
		s.mu.Lock()
		cancel, running := s.cancels[sess.SessionID]
		s.mu.Unlock()
		if running {
			cancel()
		}
	}

	s.aggregate(ctx, op)
}

// aggregate 重算作业统计与进度，全部会话终态后写回作业终态
// 统计口径：completed+failed+pending恒等于total，取消态会话计入failed桶
func (s *schedulerService) aggregate(ctx context.Context, op *runnerModel.Operation) {
	targets, err := decodeTargetHosts(op.TargetHosts)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.aggregate", "INTERNAL", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}
	sessions, err := s.sessionRepo.GetSessionsByOperationID(ctx, op.OperationID)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.aggregate", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}

	total := len(targets)
	completed, failed := 0, 0
	anyStarted := false
	for _, sess := range sessions {
		if sess.StartedAt != nil {
			anyStarted = true
		}
		switch sess.Status {
		case runnerModel.SessionStatusCompleted:
			completed++
		case runnerModel.SessionStatusFailed, runnerModel.SessionStatusCancelled:
			failed++
		}
	}
	pending := total - completed - failed

	op.StatsTotal = total
	op.StatsCompleted = completed
	op.StatsFailed = failed
	op.StatsPending = pending
	if total > 0 {
		op.Progress = (completed + failed) * 100 / total
	}

	if pending == 0 {
		op.Status = s.finalStatus(op, anyStarted, completed, failed)
		now := time.Now()
		op.CompletedAt = &now
	}

	if err := s.opRepo.UpdateOperation(ctx, op); err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.aggregate", "REPO", map[string]interface{}{
			"operation_id": op.OperationID,
		})
		return
	}

	if op.IsTerminal() {
		s.mu.Lock()
		delete(s.wakeUntil, op.OperationID)
		s.mu.Unlock()
		logger.LogRunnerEvent("operation_finished", op.OperationID, "", "",
			"operation reached terminal state", map[string]interface{}{
				"status":    op.Status,
				"completed": completed,
				"failed":    failed,
			})
		s.hub.Publish(ws.ProgressEvent{
			Type:        ws.EventOperationCompleted,
			OperationID: op.OperationID,
			Status:      op.Status,
			Progress:    op.Progress,
		})
		return
	}

	s.hub.Publish(ws.ProgressEvent{
		Type:        ws.EventOperationProgress,
		OperationID: op.OperationID,
		Status:      op.Status,
		Progress:    op.Progress,
	})
}

// finalStatus 由会话结果推导作业终态
func (s *schedulerService) finalStatus(op *runnerModel.Operation, anyStarted bool, completed, failed int) string {
	switch {
	case op.CancelRequested && !anyStarted && completed == 0:
		// 一台主机都没开始执行就被取消
		return runnerModel.OperationStatusCancelled
	case failed == 0:
		return runnerModel.OperationStatusCompleted
	case completed == 0:
		return runnerModel.OperationStatusFailed
	default:
		return runnerModel.OperationStatusCompletedWithErrors
	}
}

// recoverStaleSessions 崩溃恢复
// 上一次进程异常退出留下的执行中会话心跳不会再刷新，标记失败让聚合收敛
func (s *schedulerService) recoverStaleSessions(ctx context.Context) {
	deadline := time.Now().Add(-s.cfg.HeartbeatStaleAfter)
	stale, err := s.sessionRepo.GetStaleSessions(ctx, deadline)
	if err != nil {
		logger.LogError(err, "", 0, "", "service.scheduler.recoverStaleSessions", "REPO", map[string]interface{}{
			"msg": "failed to load stale sessions",
		})
		return
	}
	if len(stale) == 0 {
		return
	}

	now := time.Now()
	for _, sess := range stale {
		sess.Status = runnerModel.SessionStatusFailed
		sess.ErrorKind = runnerModel.ErrorKindTimeout
		sess.ErrorMsg = "session heartbeat went stale, presumed lost in a crash"
		sess.FinishedAt = &now
		if err := s.sessionRepo.UpdateSession(ctx, sess); err != nil {
			logger.LogError(err, "", 0, "", "service.scheduler.recoverStaleSessions", "REPO", map[string]interface{}{
				"session_id": sess.SessionID,
			})
		}
	}
	logger.LogSystemEvent("scheduler", "crash_recovery",
		"marked stale sessions as failed", logrus.WarnLevel, map[string]interface{}{
			"sessions": len(stale),
		})
}

// loadTargets 解析作业的目标主机列表并加载主机记录
func (s *schedulerService) loadTargets(ctx context.Context, op *runnerModel.Operation) ([]*fleetModel.Host, error) {
	hostnames, err := decodeTargetHosts(op.TargetHosts)
	if err != nil {
		return nil, err
	}
	return s.hostRepo.GetHostsByHostnames(ctx, hostnames)
}

// decodeTargetHosts 反序列化固化在作业上的目标主机名列表
func decodeTargetHosts(raw string) ([]string, error) {
	var hostnames []string
	if err := json.Unmarshal([]byte(raw), &hostnames); err != nil {
		return nil, err
	}
	return hostnames, nil
}
