package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"linbomaster/internal/model"
	fleetModel "linbomaster/internal/model/fleet"
	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/repo/memory"
	"linbomaster/internal/service/fleet"
	runnerService "linbomaster/internal/service/runner"
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
	return nil, nil
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

// stubSessionRepo 处理器测试只读取会话
type stubSessionRepo struct{}

func (r *stubSessionRepo) CreateSession(ctx context.Context, session *runnerModel.Session) error {
	return nil
}

func (r *stubSessionRepo) GetSessionByID(ctx context.Context, sessionID string) (*runnerModel.Session, error) {
	return nil, nil
}

func (r *stubSessionRepo) GetSessionsByOperationID(ctx context.Context, operationID string) ([]*runnerModel.Session, error) {
	return nil, nil
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

func newTestRouter() (*gin.Engine, *stubOpRepo) {
	gin.SetMode(gin.TestMode)

	hostRepo := &stubHostRepo{hosts: []*fleetModel.Host{
		{Hostname: "r101-pc01", MAC: "52:54:00:a1:00:01", IP: "10.0.1.101"},
		{Hostname: "r101-pc02", MAC: "52:54:00:a1:00:02", IP: "10.0.1.102"},
	}}
	hostService := fleet.NewHostService(hostRepo)
	onbootService := runnerService.NewOnbootService(memory.NewOnbootStore(), hostService)
	opRepo := newStubOpRepo()
	operationService := runnerService.NewOperationService(opRepo, &stubSessionRepo{}, hostService, onbootService)
	handler := NewOperationHandler(operationService)

	engine := gin.New()
	engine.POST("/api/v1/operations", handler.SubmitOperation)
	engine.GET("/api/v1/operations", handler.ListOperations)
	engine.GET("/api/v1/operations/:id", handler.GetOperation)
	engine.POST("/api/v1/operations/:id/cancel", handler.CancelOperation)
	return engine, opRepo
}

func doJSON(engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func TestSubmitOperationAPI(t *testing.T) {
	engine, opRepo := newTestRouter()

	recorder := doJSON(engine, http.MethodPost, "/api/v1/operations", map[string]interface{}{
		"commands": "partition,format,sync:1,start:1",
		"targets":  "r101-pc01,r101-pc02",
	})

	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp model.APIResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Len(t, opRepo.ops, 1)

	data, _ := json.Marshal(resp.Data)
	var op runnerModel.Operation
	assert.NoError(t, json.Unmarshal(data, &op))
	assert.Equal(t, runnerModel.OperationStatusPending, op.Status)
	assert.Equal(t, 2, op.StatsTotal)
	assert.NotEmpty(t, op.OperationID)
}

func TestSubmitOperationAPIValidation(t *testing.T) {
	engine, opRepo := newTestRouter()

	tests := []struct {
		name      string
		body      map[string]interface{}
		wantField string
	}{
		{
			name:      "bad_command",
			body:      map[string]interface{}{"commands": "detonate", "targets": "r101-pc01"},
			wantField: "commands",
		},
		{
			name:      "unknown_host",
			body:      map[string]interface{}{"commands": "sync:1", "targets": "ghost-pc"},
			wantField: "targets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doJSON(engine, http.MethodPost, "/api/v1/operations", tt.body)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)

			var resp model.APIResponse
			assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			if assert.Len(t, resp.Errors, 1) {
				assert.Equal(t, tt.wantField, resp.Errors[0].Field)
			}
			assert.Empty(t, opRepo.ops, "rejected submit must not persist an operation")
		})
	}

	// 缺少必填字段由绑定层拒绝
	recorder := doJSON(engine, http.MethodPost, "/api/v1/operations", map[string]interface{}{"commands": "sync:1"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetOperationAPINotFound(t *testing.T) {
	engine, _ := newTestRouter()

	recorder := doJSON(engine, http.MethodGet, "/api/v1/operations/op_unknown", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCancelOperationAPI(t *testing.T) {
	engine, opRepo := newTestRouter()

	recorder := doJSON(engine, http.MethodPost, "/api/v1/operations", map[string]interface{}{
		"commands": "sync:1",
		"targets":  "r101-pc01",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	var operationID string
	for id := range opRepo.ops {
		operationID = id
	}

	recorder = doJSON(engine, http.MethodPost, "/api/v1/operations/"+operationID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, opRepo.ops[operationID].CancelRequested)

	recorder = doJSON(engine, http.MethodPost, "/api/v1/operations/op_unknown/cancel", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListOperationsAPI(t *testing.T) {
	engine, _ := newTestRouter()

	for _, targets := range []string{"r101-pc01", "r101-pc02"} {
		recorder := doJSON(engine, http.MethodPost, "/api/v1/operations", map[string]interface{}{
			"commands": "reboot",
			"targets":  targets,
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
	}

	recorder := doJSON(engine, http.MethodGet, "/api/v1/operations?page=1&page_size=10", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp model.APIResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	data, _ := json.Marshal(resp.Data)
	var page model.PaginationResponse
	assert.NoError(t, json.Unmarshal(data, &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
}
