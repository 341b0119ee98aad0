package scheduler

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"linbomaster/internal/config"
	fleetModel "linbomaster/internal/model/fleet"
	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/pkg/ws"
	"linbomaster/internal/service/runner/executor"
)

// stubShell 立即成功或延迟后成功的远程通道
type stubShell struct {
	delay time.Duration
}

func (s *stubShell) Run(ctx context.Context, args []string, env []string) (string, int, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", -1, ctx.Err()
		}
	}
	return "ok", 0, nil
}

func (s *stubShell) Close() error { return nil }

type stubRunner struct {
	delay time.Duration
}

func (r *stubRunner) Connect(ctx context.Context, addr string) (executor.RemoteShell, error) {
	return &stubShell{delay: r.delay}, nil
}

// fakeOpStore 作业内存仓库
type fakeOpStore struct {
	mu  sync.Mutex
	ops map[string]*runnerModel.Operation
}

func newFakeOpStore() *fakeOpStore {
	return &fakeOpStore{ops: make(map[string]*runnerModel.Operation)}
}

func (s *fakeOpStore) CreateOperation(ctx context.Context, op *runnerModel.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *op
	s.ops[op.OperationID] = &copied
	return nil
}

func (s *fakeOpStore) GetOperationByID(ctx context.Context, operationID string) (*runnerModel.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, exists := s.ops[operationID]
	if !exists {
		return nil, nil
	}
	copied := *op
	return &copied, nil
}

func (s *fakeOpStore) GetPendingOperations(ctx context.Context, limit int) ([]*runnerModel.Operation, error) {
	return s.byStatus(runnerModel.OperationStatusPending), nil
}

func (s *fakeOpStore) GetRunningOperations(ctx context.Context) ([]*runnerModel.Operation, error) {
	out := s.byStatus(runnerModel.OperationStatusWaking)
	out = append(out, s.byStatus(runnerModel.OperationStatusRunning)...)
	return out, nil
}

func (s *fakeOpStore) byStatus(status string) []*runnerModel.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*runnerModel.Operation
	for _, op := range s.ops {
		if op.Status == status {
			copied := *op
			out = append(out, &copied)
		}
	}
	return out
}

func (s *fakeOpStore) ListOperations(ctx context.Context, limit, offset int) ([]*runnerModel.Operation, int64, error) {
	return nil, 0, nil
}

func (s *fakeOpStore) UpdateOperation(ctx context.Context, op *runnerModel.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *op
	s.ops[op.OperationID] = &copied
	return nil
}

func (s *fakeOpStore) UpdateOperationStatus(ctx context.Context, operationID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, exists := s.ops[operationID]; exists {
		op.Status = status
	}
	return nil
}

func (s *fakeOpStore) RequestCancel(ctx context.Context, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, exists := s.ops[operationID]; exists {
		op.CancelRequested = true
	}
	return nil
}

// fakeSessionStore 会话内存仓库
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*runnerModel.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*runnerModel.Session)}
}

func (s *fakeSessionStore) CreateSession(ctx context.Context, session *runnerModel.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.SessionID] = &copied
	return nil
}

func (s *fakeSessionStore) GetSessionByID(ctx context.Context, sessionID string) (*runnerModel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (s *fakeSessionStore) GetSessionsByOperationID(ctx context.Context, operationID string) ([]*runnerModel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*runnerModel.Session
	for _, sess := range s.sessions {
		if sess.OperationID == operationID {
			copied := *sess
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) GetBusyHostnames(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	busy := make(map[string]bool)
	for _, sess := range s.sessions {
		if !sess.IsTerminal() {
			busy[sess.Hostname] = true
		}
	}
	return busy, nil
}

func (s *fakeSessionStore) HasActiveSessionForHost(ctx context.Context, hostname string) (bool, error) {
	busy, _ := s.GetBusyHostnames(ctx)
	return busy[hostname], nil
}

func (s *fakeSessionStore) UpdateSession(ctx context.Context, session *runnerModel.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.SessionID] = &copied
	return nil
}

func (s *fakeSessionStore) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, exists := s.sessions[sessionID]; exists {
		sess.Status = status
	}
	return nil
}

func (s *fakeSessionStore) TouchHeartbeat(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, exists := s.sessions[sessionID]; exists {
		now := time.Now()
		sess.HeartbeatAt = &now
	}
	return nil
}

func (s *fakeSessionStore) GetStaleSessions(ctx context.Context, deadline time.Time) ([]*runnerModel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*runnerModel.Session
	for _, sess := range s.sessions {
		executing := sess.Status == runnerModel.SessionStatusConnecting ||
			sess.Status == runnerModel.SessionStatusRunning
		if executing && (sess.HeartbeatAt == nil || sess.HeartbeatAt.Before(deadline)) {
			copied := *sess
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeHostStore 主机内存仓库(调度器只依赖GetHostsByHostnames)
type fakeHostStore struct {
	hosts map[string]*fleetModel.Host
}

func newFakeHostStore(hosts ...*fleetModel.Host) *fakeHostStore {
	store := &fakeHostStore{hosts: make(map[string]*fleetModel.Host)}
	for _, host := range hosts {
		store.hosts[host.Hostname] = host
	}
	return store
}

func (s *fakeHostStore) CreateHost(ctx context.Context, host *fleetModel.Host) error { return nil }

func (s *fakeHostStore) GetHostByHostname(ctx context.Context, hostname string) (*fleetModel.Host, error) {
	return s.hosts[hostname], nil
}

func (s *fakeHostStore) GetHostsByHostnames(ctx context.Context, hostnames []string) ([]*fleetModel.Host, error) {
	out := make([]*fleetModel.Host, 0, len(hostnames))
	for _, hostname := range hostnames {
		if host, exists := s.hosts[hostname]; exists {
			out = append(out, host)
		}
	}
	return out, nil
}

func (s *fakeHostStore) GetHostsByGroup(ctx context.Context, group string) ([]*fleetModel.Host, error) {
	return nil, nil
}

func (s *fakeHostStore) GetHostsByRoom(ctx context.Context, room string) ([]*fleetModel.Host, error) {
	return nil, nil
}

func (s *fakeHostStore) ListHosts(ctx context.Context) ([]*fleetModel.Host, error) { return nil, nil }

func (s *fakeHostStore) DeleteHost(ctx context.Context, hostname string) error { return nil }

func (s *fakeHostStore) CreateRoom(ctx context.Context, room *fleetModel.Room) error { return nil }

func (s *fakeHostStore) ListRooms(ctx context.Context) ([]*fleetModel.Room, error) { return nil, nil }

func (s *fakeHostStore) CreateGroup(ctx context.Context, group *fleetModel.Group) error { return nil }

func (s *fakeHostStore) ListGroups(ctx context.Context) ([]*fleetModel.Group, error) { return nil, nil }

func schedulerTestConfig() config.RunnerConfig {
	return config.RunnerConfig{
		PollInterval:          10 * time.Millisecond,
		MaxConcurrentSessions: 4,
		BusyRetryTicks:        60,
		ConnectTimeout:        time.Second,
		CommandTimeout:        time.Second,
		SessionMaxDuration:    5 * time.Second,
		HeartbeatStaleAfter:   10 * time.Minute,
		WOL: config.WOLConfig{
			BroadcastAddr:    "127.0.0.1:9",
			DefaultWakeDelay: 50 * time.Millisecond,
		},
		SSH: config.SSHConfig{User: "root", Port: 2222},
	}
}

type schedulerFixture struct {
	svc      *schedulerService
	opStore  *fakeOpStore
	sessions *fakeSessionStore
	hosts    *fakeHostStore
}

func newSchedulerFixture(cfg config.RunnerConfig, runner executor.CommandRunner, hosts ...*fleetModel.Host) *schedulerFixture {
	opStore := newFakeOpStore()
	sessionStore := newFakeSessionStore()
	hostStore := newFakeHostStore(hosts...)
	hub := ws.NewHub(0, 0, 0, false)
	exec := executor.NewExecutor(runner, sessionStore, hub, cfg)
	svc := NewSchedulerService(cfg, opStore, sessionStore, hostStore, exec, hub).(*schedulerService)
	return &schedulerFixture{svc: svc, opStore: opStore, sessions: sessionStore, hosts: hostStore}
}

func testHost(hostname, ip string) *fleetModel.Host {
	return &fleetModel.Host{Hostname: hostname, MAC: "52:54:00:a1:00:01", IP: ip}
}

func testOperation(operationID, commands string, hostnames []string, createdAt time.Time) *runnerModel.Operation {
	raw := "["
	for i, hostname := range hostnames {
		if i > 0 {
			raw += ","
		}
		raw += `"` + hostname + `"`
	}
	raw += "]"
	op := &runnerModel.Operation{
		OperationID:  operationID,
		Commands:     commands,
		TargetHosts:  raw,
		Status:       runnerModel.OperationStatusPending,
		StatsTotal:   len(hostnames),
		StatsPending: len(hostnames),
	}
	op.CreatedAt = createdAt
	return op
}

func TestScheduleDispatchesAndCompletes(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{},
		testHost("r101-pc01", "10.0.1.101"), testHost("r101-pc02", "10.0.1.102"))
	ctx := context.Background()

	fix.opStore.CreateOperation(ctx, testOperation("op-1", "sync:1,start:1",
		[]string{"r101-pc01", "r101-pc02"}, time.Now()))

	// 第一轮：派发会话，worker异步执行
	fix.svc.schedule(ctx)

	// 首个会话派发后作业进入running并记录开始时间
	op, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if op.Status != runnerModel.OperationStatusRunning && !op.IsTerminal() {
		t.Fatalf("operation status after dispatch = %q, want running", op.Status)
	}
	if op.StartedAt == nil {
		t.Error("StartedAt should be set when the first session dispatches")
	}

	fix.svc.workerWg.Wait()

	sessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 2 {
		t.Fatalf("sessions created = %d, want 2", len(sessions))
	}
	for _, sess := range sessions {
		if sess.Status != runnerModel.SessionStatusCompleted {
			t.Errorf("session %s status = %q, want completed", sess.Hostname, sess.Status)
		}
	}

	// 第二轮：聚合写回作业终态
	fix.svc.schedule(ctx)
	op, _ = fix.opStore.GetOperationByID(ctx, "op-1")
	if op.Status != runnerModel.OperationStatusCompleted {
		t.Fatalf("operation status = %q, want completed", op.Status)
	}
	if op.Progress != 100 {
		t.Errorf("progress = %d, want 100", op.Progress)
	}
	if op.StatsCompleted != 2 || op.StatsFailed != 0 || op.StatsPending != 0 {
		t.Errorf("stats = %d/%d/%d, want 2/0/0", op.StatsCompleted, op.StatsFailed, op.StatsPending)
	}
	if op.StatsTotal != op.StatsCompleted+op.StatsFailed+op.StatsPending {
		t.Error("stats invariant violated: total != completed+failed+pending")
	}
	if op.CompletedAt == nil {
		t.Error("CompletedAt should be set on terminal operation")
	}
}

func TestScheduleHostContentionFavorsOlderOperation(t *testing.T) {
	cfg := schedulerTestConfig()
	// 延迟执行让第一个作业在本轮内持续占用主机
	fix := newSchedulerFixture(cfg, &stubRunner{delay: 200 * time.Millisecond},
		testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	base := time.Now()
	fix.opStore.CreateOperation(ctx, testOperation("op-old", "sync:1", []string{"r101-pc01"}, base))
	fix.opStore.CreateOperation(ctx, testOperation("op-new", "reboot", []string{"r101-pc01"}, base.Add(time.Second)))

	fix.svc.schedule(ctx)

	oldSessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-old")
	newSessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-new")
	if len(oldSessions) != 1 {
		t.Errorf("older operation sessions = %d, want 1", len(oldSessions))
	}
	if len(newSessions) != 0 {
		t.Errorf("newer operation sessions = %d, want 0 (host claimed by older operation)", len(newSessions))
	}

	fix.svc.workerWg.Wait()

	// 主机释放后，后来的作业在下一轮得到派发
	fix.svc.schedule(ctx)
	fix.svc.workerWg.Wait()
	newSessions, _ = fix.sessions.GetSessionsByOperationID(ctx, "op-new")
	if len(newSessions) != 1 {
		t.Errorf("newer operation sessions after host released = %d, want 1", len(newSessions))
	}
}

func TestScheduleBusyRetryExhaustion(t *testing.T) {
	cfg := schedulerTestConfig()
	cfg.BusyRetryTicks = 2
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	// 另一个作业的非终态会话持续占用主机
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID:   "sess-blocker",
		OperationID: "op-other",
		Hostname:    "r101-pc01",
		Status:      runnerModel.SessionStatusRunning,
	})
	fix.opStore.CreateOperation(ctx, testOperation("op-1", "sync:1", []string{"r101-pc01"}, time.Now()))

	// 前两轮只计数，第三轮超出预算落失败会话
	for i := 0; i < 3; i++ {
		fix.svc.schedule(ctx)
	}

	sessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1 terminal busy-failure", len(sessions))
	}
	sess := sessions[0]
	if sess.Status != runnerModel.SessionStatusFailed {
		t.Errorf("status = %q, want failed", sess.Status)
	}
	if sess.ErrorKind != runnerModel.ErrorKindHostBusy {
		t.Errorf("ErrorKind = %q, want %q", sess.ErrorKind, runnerModel.ErrorKindHostBusy)
	}
	if sess.BusyTicks != 3 {
		t.Errorf("BusyTicks = %d, want 3", sess.BusyTicks)
	}

	// 下一轮聚合出作业终态
	fix.svc.schedule(ctx)
	op, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if op.Status != runnerModel.OperationStatusFailed {
		t.Errorf("operation status = %q, want failed", op.Status)
	}
}

func TestScheduleWorkerPoolBounded(t *testing.T) {
	cfg := schedulerTestConfig()
	cfg.MaxConcurrentSessions = 1
	fix := newSchedulerFixture(cfg, &stubRunner{delay: 100 * time.Millisecond},
		testHost("r101-pc01", "10.0.1.101"), testHost("r101-pc02", "10.0.1.102"))
	ctx := context.Background()

	fix.opStore.CreateOperation(ctx, testOperation("op-1", "sync:1",
		[]string{"r101-pc01", "r101-pc02"}, time.Now()))

	// 工作池只有一个空位：本轮只能派发一台主机
	fix.svc.schedule(ctx)
	sessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 1 {
		t.Fatalf("sessions after first tick = %d, want 1 (pool size 1)", len(sessions))
	}

	fix.svc.workerWg.Wait()
	fix.svc.schedule(ctx)
	fix.svc.workerWg.Wait()
	sessions, _ = fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 2 {
		t.Fatalf("sessions after second tick = %d, want 2", len(sessions))
	}
}

func TestScheduleCancelBeforeDispatch(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{},
		testHost("r101-pc01", "10.0.1.101"), testHost("r101-pc02", "10.0.1.102"))
	ctx := context.Background()

	op := testOperation("op-1", "sync:1", []string{"r101-pc01", "r101-pc02"}, time.Now())
	op.CancelRequested = true
	fix.opStore.CreateOperation(ctx, op)

	fix.svc.schedule(ctx)

	stored, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if stored.Status != runnerModel.OperationStatusCancelled {
		t.Fatalf("operation status = %q, want cancelled", stored.Status)
	}
	sessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 2 {
		t.Fatalf("cancelled sessions = %d, want 2", len(sessions))
	}
	for _, sess := range sessions {
		if sess.Status != runnerModel.SessionStatusCancelled {
			t.Errorf("session %s status = %q, want cancelled", sess.Hostname, sess.Status)
		}
		if sess.ErrorKind != runnerModel.ErrorKindCancelled {
			t.Errorf("session %s ErrorKind = %q, want cancelled", sess.Hostname, sess.ErrorKind)
		}
	}
	// 取消态会话计入failed桶，统计恒等式保持
	if stored.StatsFailed != 2 || stored.StatsPending != 0 {
		t.Errorf("stats failed/pending = %d/%d, want 2/0", stored.StatsFailed, stored.StatsPending)
	}
}

func TestSchedulePartialFailureAggregation(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	op := testOperation("op-1", "sync:1", []string{"r101-pc01", "r101-pc02"}, time.Now())
	op.Status = runnerModel.OperationStatusRunning
	fix.opStore.CreateOperation(ctx, op)

	// 一台成功、一台失败的既有会话
	now := time.Now()
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID: "sess-ok", OperationID: "op-1", Hostname: "r101-pc01",
		Status: runnerModel.SessionStatusCompleted, StartedAt: &now,
	})
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID: "sess-bad", OperationID: "op-1", Hostname: "r101-pc02",
		Status: runnerModel.SessionStatusFailed, ErrorKind: runnerModel.ErrorKindConnection,
	})

	fix.svc.schedule(ctx)
	fix.svc.workerWg.Wait()

	stored, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if stored.Status != runnerModel.OperationStatusCompletedWithErrors {
		t.Fatalf("operation status = %q, want completed_with_errors", stored.Status)
	}
	if stored.StatsCompleted != 1 || stored.StatsFailed != 1 || stored.StatsPending != 0 {
		t.Errorf("stats = %d/%d/%d, want 1/1/0", stored.StatsCompleted, stored.StatsFailed, stored.StatsPending)
	}
}

func TestWakeOnLanWaitsForBootWindow(t *testing.T) {
	// 本地UDP监听接收魔术包
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to open udp listener: %v", err)
	}
	defer conn.Close()

	cfg := schedulerTestConfig()
	cfg.WOL.BroadcastAddr = conn.LocalAddr().String()
	cfg.WOL.DefaultWakeDelay = 80 * time.Millisecond
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	op := testOperation("op-1", "sync:1,start:1", []string{"r101-pc01"}, time.Now())
	op.WakeOnLan = true
	fix.opStore.CreateOperation(ctx, op)

	// 第一轮：发包并进入waking
	fix.svc.schedule(ctx)
	stored, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if stored.Status != runnerModel.OperationStatusWaking {
		t.Fatalf("operation status = %q, want waking", stored.Status)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 256)
	if n, _, err := conn.ReadFrom(buf); err != nil || n != 102 {
		t.Errorf("magic packet read = %d bytes, err %v, want 102 bytes", n, err)
	}

	// 等待窗口内不派发
	fix.svc.schedule(ctx)
	sessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 0 {
		t.Fatalf("sessions during wake window = %d, want 0", len(sessions))
	}

	// 窗口结束后正常派发
	time.Sleep(100 * time.Millisecond)
	fix.svc.schedule(ctx)
	fix.svc.workerWg.Wait()
	sessions, _ = fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 1 {
		t.Fatalf("sessions after wake window = %d, want 1", len(sessions))
	}
}

func TestRecoverStaleSessions(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	stale := time.Now().Add(-time.Hour)
	fresh := time.Now()
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID: "sess-stale", OperationID: "op-1", Hostname: "r101-pc01",
		Status: runnerModel.SessionStatusRunning, HeartbeatAt: &stale,
	})
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID: "sess-live", OperationID: "op-1", Hostname: "r101-pc02",
		Status: runnerModel.SessionStatusRunning, HeartbeatAt: &fresh,
	})

	fix.svc.recoverStaleSessions(ctx)

	staleSess, _ := fix.sessions.GetSessionByID(ctx, "sess-stale")
	if staleSess.Status != runnerModel.SessionStatusFailed {
		t.Errorf("stale session status = %q, want failed", staleSess.Status)
	}
	if staleSess.ErrorKind != runnerModel.ErrorKindTimeout {
		t.Errorf("stale session ErrorKind = %q, want timeout", staleSess.ErrorKind)
	}
	liveSess, _ := fix.sessions.GetSessionByID(ctx, "sess-live")
	if liveSess.Status != runnerModel.SessionStatusRunning {
		t.Errorf("live session status = %q, should stay running", liveSess.Status)
	}
}

func TestCrashRecoveryResumesPendingSession(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	// 重启前的现场：作业running，会话建好了但worker还没来得及执行
	now := time.Now()
	op := testOperation("op-1", "sync:1", []string{"r101-pc01"}, now.Add(-time.Minute))
	op.Status = runnerModel.OperationStatusRunning
	op.StartedAt = &now
	fix.opStore.CreateOperation(ctx, op)
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID:     "sess-orphan",
		OperationID:   "op-1",
		Hostname:      "r101-pc01",
		Commands:      "sync:1",
		Status:        runnerModel.SessionStatusPending,
		FailedCommand: -1,
	})

	// 崩溃恢复只针对执行中会话，从未启动的pending会话留给续派
	fix.svc.recoverStaleSessions(ctx)
	orphan, _ := fix.sessions.GetSessionByID(ctx, "sess-orphan")
	if orphan.Status != runnerModel.SessionStatusPending {
		t.Fatalf("orphan session status after recovery = %q, want pending", orphan.Status)
	}

	// 第一轮：续派原会话记录，不新建
	fix.svc.schedule(ctx)
	fix.svc.workerWg.Wait()

	sessions, _ := fix.sessions.GetSessionsByOperationID(ctx, "op-1")
	if len(sessions) != 1 {
		t.Fatalf("sessions after redispatch = %d, want 1 (no duplicate)", len(sessions))
	}
	if sessions[0].SessionID != "sess-orphan" {
		t.Errorf("redispatched session id = %q, want sess-orphan", sessions[0].SessionID)
	}
	if sessions[0].Status != runnerModel.SessionStatusCompleted {
		t.Errorf("redispatched session status = %q, want completed", sessions[0].Status)
	}

	// 第二轮：作业收敛到终态
	fix.svc.schedule(ctx)
	stored, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if stored.Status != runnerModel.OperationStatusCompleted {
		t.Fatalf("operation status after restart recovery = %q, want completed", stored.Status)
	}
	if stored.StatsPending != 0 {
		t.Errorf("StatsPending = %d, want 0", stored.StatsPending)
	}
}

func TestOperationStaysPendingWhileHostsBusy(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))
	ctx := context.Background()

	// 主机被其他作业的会话占着，本作业一台都派不出去
	fix.sessions.CreateSession(ctx, &runnerModel.Session{
		SessionID:   "sess-blocker",
		OperationID: "op-other",
		Hostname:    "r101-pc01",
		Status:      runnerModel.SessionStatusRunning,
	})
	fix.opStore.CreateOperation(ctx, testOperation("op-1", "sync:1", []string{"r101-pc01"}, time.Now()))

	fix.svc.schedule(ctx)

	stored, _ := fix.opStore.GetOperationByID(ctx, "op-1")
	if stored.Status != runnerModel.OperationStatusPending {
		t.Fatalf("operation status with all hosts busy = %q, want pending", stored.Status)
	}
	if stored.StartedAt != nil {
		t.Error("StartedAt should stay unset until a session dispatches")
	}
}

func TestPauseStopsDispatch(t *testing.T) {
	cfg := schedulerTestConfig()
	fix := newSchedulerFixture(cfg, &stubRunner{}, testHost("r101-pc01", "10.0.1.101"))

	if fix.svc.IsPaused() {
		t.Fatal("scheduler should start unpaused")
	}
	fix.svc.Pause()
	if !fix.svc.IsPaused() {
		t.Fatal("IsPaused() = false after Pause()")
	}
	fix.svc.Resume()
	if fix.svc.IsPaused() {
		t.Fatal("IsPaused() = true after Resume()")
	}
}
