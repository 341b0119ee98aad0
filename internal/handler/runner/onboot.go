/**
 * 预约命令接口处理器
 * @author: amolani
 * @date: 2026.07.24
 * @description: 预约命令(下次启动执行)的HTTP接口
 * @func: 登记、列出、取消、客户端启动时消费
 */
package runner

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linbomaster/internal/model"
	"linbomaster/internal/pkg/logger"
	runnerService "linbomaster/internal/service/runner"
)

// OnbootHandler 预约命令处理器
type OnbootHandler struct {
	service *runnerService.OnbootService
}

// NewOnbootHandler 创建 OnbootHandler
func NewOnbootHandler(service *runnerService.OnbootService) *OnbootHandler {
	return &OnbootHandler{
		service: service,
	}
}

// scheduleRequest 预约命令登记请求
type scheduleRequest struct {
	Hostname string `json:"hostname" binding:"required"` // 目标主机名
	Commands string `json:"commands" binding:"required"` // 逗号分隔的命令串
}

// ScheduleOnboot 为主机登记预约命令(覆盖旧记录)
func (h *OnbootHandler) ScheduleOnboot(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	if err := h.service.Schedule(c.Request.Context(), req.Hostname, req.Commands); err != nil {
		var validationErr *runnerService.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, model.APIResponse{
				Code:    http.StatusBadRequest,
				Status:  "error",
				Message: "Validation failed",
				Errors: []model.ValidationError{
					{Field: validationErr.Field, Message: validationErr.Message},
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to schedule deferred command",
			Error:   err.Error(),
		})
		return
	}

	logger.WithFields(map[string]interface{}{
		"path":      c.Request.URL.String(),
		"operation": "schedule_onboot",
		"hostname":  req.Hostname,
		"func_name": "handler.runner.onboot.ScheduleOnboot",
	}).Info("预约命令登记成功")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Deferred command scheduled",
	})
}

// ListOnboot 列出全部预约命令
func (h *OnbootHandler) ListOnboot(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to list deferred commands",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    records,
	})
}

// CancelOnboot 取消主机的预约命令(幂等)
func (h *OnbootHandler) CancelOnboot(c *gin.Context) {
	hostname := c.Param("hostname")

	if err := h.service.Cancel(c.Request.Context(), hostname); err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to cancel deferred command",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Deferred command cancelled",
	})
}

// ConsumeOnboot 客户端启动时取走预约命令(取走即删除)
// 无记录时返回空data，客户端按无预约处理
func (h *OnbootHandler) ConsumeOnboot(c *gin.Context) {
	hostname := c.Param("hostname")

	record, err := h.service.Consume(c.Request.Context(), hostname)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to consume deferred command",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    record,
	})
}
