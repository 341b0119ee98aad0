package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	fleetModel "linbomaster/internal/model/fleet"
	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/repo/memory"
	"linbomaster/internal/service/fleet"
)

// stubHostRepo 主机内存仓库
type stubHostRepo struct {
	hosts []*fleetModel.Host
}

func (r *stubHostRepo) CreateHost(ctx context.Context, host *fleetModel.Host) error { return nil }

func (r *stubHostRepo) GetHostByHostname(ctx context.Context, hostname string) (*fleetModel.Host, error) {
	for _, host := range r.hosts {
		if host.Hostname == hostname {
			return host, nil
		}
	}
	return nil, nil
}

func (r *stubHostRepo) GetHostsByHostnames(ctx context.Context, hostnames []string) ([]*fleetModel.Host, error) {
	wanted := make(map[string]bool, len(hostnames))
	for _, name := range hostnames {
		wanted[name] = true
	}
	var out []*fleetModel.Host
	for _, host := range r.hosts {
		if wanted[host.Hostname] {
			out = append(out, host)
		}
	}
	return out, nil
}

func (r *stubHostRepo) GetHostsByGroup(ctx context.Context, group string) ([]*fleetModel.Host, error) {
	var out []*fleetModel.Host
	for _, host := range r.hosts {
		if host.Group == group {
			out = append(out, host)
		}
	}
	return out, nil
}

func (r *stubHostRepo) GetHostsByRoom(ctx context.Context, room string) ([]*fleetModel.Host, error) {
	return nil, nil
}

func (r *stubHostRepo) ListHosts(ctx context.Context) ([]*fleetModel.Host, error) {
	return r.hosts, nil
}

func (r *stubHostRepo) DeleteHost(ctx context.Context, hostname string) error { return nil }

func (r *stubHostRepo) CreateRoom(ctx context.Context, room *fleetModel.Room) error { return nil }

func (r *stubHostRepo) ListRooms(ctx context.Context) ([]*fleetModel.Room, error) { return nil, nil }

func (r *stubHostRepo) CreateGroup(ctx context.Context, group *fleetModel.Group) error { return nil }

func (r *stubHostRepo) ListGroups(ctx context.Context) ([]*fleetModel.Group, error) { return nil, nil }

// stubOpRepo 作业内存仓库
type stubOpRepo struct {
	ops map[string]*runnerModel.Operation
}

func newStubOpRepo() *stubOpRepo {
	return &stubOpRepo{ops: make(map[string]*runnerModel.Operation)}
}

func (r *stubOpRepo) CreateOperation(ctx context.Context, op *runnerModel.Operation) error {
	copied := *op
	r.ops[op.OperationID] = &copied
	return nil
}

func (r *stubOpRepo) GetOperationByID(ctx context.Context, operationID string) (*runnerModel.Operation, error) {
	op, exists := r.ops[operationID]
	if !exists {
		return nil, nil
	}
	copied := *op
	return &copied, nil
}

func (r *stubOpRepo) GetPendingOperations(ctx context.Context, limit int) ([]*runnerModel.Operation, error) {
	return nil, nil
}

func (r *stubOpRepo) GetRunningOperations(ctx context.Context) ([]*runnerModel.Operation, error) {
	return nil, nil
}

func (r *stubOpRepo) ListOperations(ctx context.Context, limit, offset int) ([]*runnerModel.Operation, int64, error) {
	out := make([]*runnerModel.Operation, 0, len(r.ops))
	for _, op := range r.ops {
		copied := *op
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *stubOpRepo) UpdateOperation(ctx context.Context, op *runnerModel.Operation) error {
	copied := *op
	r.ops[op.OperationID] = &copied
	return nil
}

func (r *stubOpRepo) UpdateOperationStatus(ctx context.Context, operationID, status string) error {
	if op, exists := r.ops[operationID]; exists {
		op.Status = status
	}
	return nil
}

func (r *stubOpRepo) RequestCancel(ctx context.Context, operationID string) error {
	if op, exists := r.ops[operationID]; exists {
		op.CancelRequested = true
	}
	return nil
}

// stubSessionRepo 作业服务只读取会话，其余方法为空实现
type stubSessionRepo struct {
	sessions []*runnerModel.Session
}

func (r *stubSessionRepo) CreateSession(ctx context.Context, session *runnerModel.Session) error {
	return nil
}

func (r *stubSessionRepo) GetSessionByID(ctx context.Context, sessionID string) (*runnerModel.Session, error) {
	return nil, nil
}

func (r *stubSessionRepo) GetSessionsByOperationID(ctx context.Context, operationID string) ([]*runnerModel.Session, error) {
	var out []*runnerModel.Session
	for _, sess := range r.sessions {
		if sess.OperationID == operationID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (r *stubSessionRepo) GetBusyHostnames(ctx context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (r *stubSessionRepo) HasActiveSessionForHost(ctx context.Context, hostname string) (bool, error) {
	return false, nil
}

func (r *stubSessionRepo) UpdateSession(ctx context.Context, session *runnerModel.Session) error {
	return nil
}

func (r *stubSessionRepo) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	return nil
}

func (r *stubSessionRepo) TouchHeartbeat(ctx context.Context, sessionID string) error { return nil }

func (r *stubSessionRepo) GetStaleSessions(ctx context.Context, deadline time.Time) ([]*runnerModel.Session, error) {
	return nil, nil
}

type operationFixture struct {
	svc    *OperationService
	onboot *OnbootService
	opRepo *stubOpRepo
	hosts  *stubHostRepo
}

func newOperationFixture() *operationFixture {
	hostRepo := &stubHostRepo{hosts: []*fleetModel.Host{
		{Hostname: "r101-pc01", MAC: "52:54:00:a1:00:01", IP: "10.0.1.101", Group: "win10"},
		{Hostname: "r101-pc02", MAC: "52:54:00:a1:00:02", IP: "10.0.1.102", Group: "win10"},
	}}
	hostService := fleet.NewHostService(hostRepo)
	onbootService := NewOnbootService(memory.NewOnbootStore(), hostService)
	opRepo := newStubOpRepo()
	svc := NewOperationService(opRepo, &stubSessionRepo{}, hostService, onbootService)
	return &operationFixture{svc: svc, onboot: onbootService, opRepo: opRepo, hosts: hostRepo}
}

func TestSubmitCreatesPendingOperation(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	op, err := fix.svc.Submit(ctx, &SubmitRequest{
		Commands:  "partition,format,sync:1,start:1",
		Targets:   "group:win10",
		CreatedBy: "admin",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if op.Status != runnerModel.OperationStatusPending {
		t.Errorf("status = %q, want pending", op.Status)
	}
	if op.StatsTotal != 2 || op.StatsPending != 2 {
		t.Errorf("stats total/pending = %d/%d, want 2/2", op.StatsTotal, op.StatsPending)
	}
	if op.TargetHosts != `["r101-pc01","r101-pc02"]` {
		t.Errorf("TargetHosts = %q, targets not frozen at submit", op.TargetHosts)
	}
	if op.CreatedBy != "admin" {
		t.Errorf("CreatedBy = %q, want admin", op.CreatedBy)
	}

	stored, _ := fix.opRepo.GetOperationByID(ctx, op.OperationID)
	if stored == nil {
		t.Fatal("operation not persisted")
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	tests := []struct {
		name      string
		req       *SubmitRequest
		wantField string
	}{
		{
			name:      "bad_command_syntax",
			req:       &SubmitRequest{Commands: "explode:1", Targets: "r101-pc01"},
			wantField: "commands",
		},
		{
			name:      "flags_only",
			req:       &SubmitRequest{Commands: "noauto,disablegui", Targets: "r101-pc01"},
			wantField: "commands",
		},
		{
			name:      "unknown_host",
			req:       &SubmitRequest{Commands: "sync:1", Targets: "ghost-pc"},
			wantField: "targets",
		},
		{
			name:      "unknown_group",
			req:       &SubmitRequest{Commands: "sync:1", Targets: "group:nope"},
			wantField: "targets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fix.svc.Submit(ctx, tt.req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Submit() error = %v, want *ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("error field = %q, want %q", validationErr.Field, tt.wantField)
			}
			// 校验失败不能留下任何记录
			if len(fix.opRepo.ops) != 0 {
				t.Error("rejected submit must not persist an operation")
			}
		})
	}
}

func TestSubmitDeferredRegistersOnbootRecords(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	op, err := fix.svc.Submit(ctx, &SubmitRequest{
		Commands: "sync:1,start:1",
		Targets:  "r101-pc01,r101-pc02",
		Deferred: true,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// 预约作业不进调度，提交即落终态留档
	if op.Status != runnerModel.OperationStatusCompleted {
		t.Errorf("status = %q, want completed", op.Status)
	}
	if op.Progress != 100 || op.StatsPending != 0 {
		t.Errorf("progress/pending = %d/%d, want 100/0", op.Progress, op.StatsPending)
	}
	if op.CompletedAt == nil {
		t.Error("CompletedAt should be set for deferred operation")
	}

	for _, hostname := range []string{"r101-pc01", "r101-pc02"} {
		record, err := fix.onboot.Get(ctx, hostname)
		if err != nil {
			t.Fatalf("onboot Get(%s) error = %v", hostname, err)
		}
		if record == nil {
			t.Fatalf("no deferred command registered for %s", hostname)
		}
		if record.RawContent != "sync:1,start:1" {
			t.Errorf("deferred commands for %s = %q, want sync:1,start:1", hostname, record.RawContent)
		}
	}
}

func TestCancelOperation(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	op, err := fix.svc.Submit(ctx, &SubmitRequest{Commands: "sync:1", Targets: "r101-pc01"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	cancelled, err := fix.svc.Cancel(ctx, op.OperationID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !cancelled.CancelRequested {
		t.Error("CancelRequested should be set")
	}

	// 作业不存在
	missing, err := fix.svc.Cancel(ctx, "op_missing")
	if err != nil {
		t.Fatalf("Cancel(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("Cancel on unknown operation should return nil")
	}

	// 终态作业上的取消是幂等空操作
	fix.opRepo.ops[op.OperationID].Status = runnerModel.OperationStatusCompleted
	fix.opRepo.ops[op.OperationID].CancelRequested = false
	terminal, err := fix.svc.Cancel(ctx, op.OperationID)
	if err != nil {
		t.Fatalf("Cancel(terminal) error = %v", err)
	}
	if terminal.CancelRequested {
		t.Error("cancel on terminal operation must not set the flag")
	}
}

func TestOnbootScheduleValidation(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		hostname string
		commands string
		wantErr  bool
	}{
		{name: "valid", hostname: "r101-pc01", commands: "sync:1,halt", wantErr: false},
		{name: "bad_syntax", hostname: "r101-pc01", commands: "sync", wantErr: true},
		{name: "unknown_host", hostname: "ghost-pc", commands: "sync:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fix.onboot.Schedule(ctx, tt.hostname, tt.commands)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Schedule(%s, %q) error = %v, wantErr %v", tt.hostname, tt.commands, err, tt.wantErr)
			}
			if tt.wantErr {
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Errorf("error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

func TestOnbootConsumeDeletes(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	if err := fix.onboot.Schedule(ctx, "r101-pc01", "sync:1,start:1"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	record, err := fix.onboot.Consume(ctx, "r101-pc01")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if record == nil || record.RawContent != "sync:1,start:1" {
		t.Fatalf("Consume() = %+v, want the registered record", record)
	}

	// 取走即删：第二次消费拿不到
	again, err := fix.onboot.Consume(ctx, "r101-pc01")
	if err != nil {
		t.Fatalf("second Consume() error = %v", err)
	}
	if again != nil {
		t.Error("deferred command must be consumed at most once")
	}
}

func TestOnbootCancelIdempotent(t *testing.T) {
	fix := newOperationFixture()
	ctx := context.Background()

	if err := fix.onboot.Schedule(ctx, "r101-pc02", "reboot"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if err := fix.onboot.Cancel(ctx, "r101-pc02"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if record, _ := fix.onboot.Get(ctx, "r101-pc02"); record != nil {
		t.Error("record still present after cancel")
	}
	if err := fix.onboot.Cancel(ctx, "r101-pc02"); err != nil {
		t.Errorf("second Cancel() error = %v, want nil", err)
	}
}
