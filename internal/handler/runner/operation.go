/**
 * 作业接口处理器
 * @author: amolani
 * @date: 2026.07.24
 * @description: 批量作业的HTTP接口
 * @func: 提交作业、查询详情、分页列表、请求取消
 */
package runner

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"linbomaster/internal/model"
	"linbomaster/internal/pkg/logger"
	runnerService "linbomaster/internal/service/runner"
)

// OperationHandler 作业处理器
type OperationHandler struct {
	service *runnerService.OperationService
}

// NewOperationHandler 创建 OperationHandler
func NewOperationHandler(service *runnerService.OperationService) *OperationHandler {
	return &OperationHandler{
		service: service,
	}
}

// SubmitOperation 提交批量作业
// 命令串或目标选择器校验失败返回400，不产生任何记录
func (h *OperationHandler) SubmitOperation(c *gin.Context) {
	var req runnerService.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}
	req.CreatedBy = c.GetString("username")

	op, err := h.service.Submit(c.Request.Context(), &req)
	if err != nil {
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
			Message: "Failed to submit operation",
			Error:   err.Error(),
		})
		return
	}

	logger.WithFields(map[string]interface{}{
		"path":         c.Request.URL.String(),
		"operation":    "submit_operation",
		"operation_id": op.OperationID,
		"func_name":    "handler.runner.operation.SubmitOperation",
	}).Info("作业提交成功")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Operation submitted successfully",
		Data:    op,
	})
}

// GetOperation 查询作业详情(含全部会话)
func (h *OperationHandler) GetOperation(c *gin.Context) {
	operationID := c.Param("id")

	detail, err := h.service.Get(c.Request.Context(), operationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to get operation",
			Error:   err.Error(),
		})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, model.APIResponse{
			Code:    http.StatusNotFound,
			Status:  "error",
			Message: "Operation not found",
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    detail,
	})
}

// ListOperations 分页列出作业(最新在前)
func (h *OperationHandler) ListOperations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}

	ops, total, err := h.service.List(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to list operations",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data: model.PaginationResponse{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Items:    ops,
		},
	})
}

// CancelOperation 请求取消作业
// 协作式取消：已达终态的作业返回当前状态，不报错
func (h *OperationHandler) CancelOperation(c *gin.Context) {
	operationID := c.Param("id")

	op, err := h.service.Cancel(c.Request.Context(), operationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to cancel operation",
			Error:   err.Error(),
		})
		return
	}
	if op == nil {
		c.JSON(http.StatusNotFound, model.APIResponse{
			Code:    http.StatusNotFound,
			Status:  "error",
			Message: "Operation not found",
		})
		return
	}

	logger.WithFields(map[string]interface{}{
		"path":         c.Request.URL.String(),
		"operation":    "cancel_operation",
		"operation_id": operationID,
		"func_name":    "handler.runner.operation.CancelOperation",
	}).Info("作业取消请求已受理")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Cancellation requested",
		Data:    op,
	})
}
