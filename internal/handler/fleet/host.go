/**
 * 主机清单接口处理器
 * @author: amolani
 * @date: 2026.07.24
 * @description: 受管主机/教室/主机组的HTTP接口
 * @func: 主机登记与删除、清单查询、教室/组管理
 */
package fleet

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linbomaster/internal/model"
	fleetModel "linbomaster/internal/model/fleet"
	"linbomaster/internal/pkg/logger"
	fleetService "linbomaster/internal/service/fleet"
)

// HostHandler 主机清单处理器
type HostHandler struct {
	service *fleetService.HostService
}

// NewHostHandler 创建 HostHandler
func NewHostHandler(service *fleetService.HostService) *HostHandler {
	return &HostHandler{
		service: service,
	}
}

// CreateHost 登记主机
func (h *HostHandler) CreateHost(c *gin.Context) {
	var host fleetModel.Host
	if err := c.ShouldBindJSON(&host); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	if err := h.service.CreateHost(c.Request.Context(), &host); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Failed to create host",
			Error:   err.Error(),
		})
		return
	}

	logger.WithFields(map[string]interface{}{
		"path":      c.Request.URL.String(),
		"operation": "create_host",
		"hostname":  host.Hostname,
		"func_name": "handler.fleet.host.CreateHost",
	}).Info("主机登记成功")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Host created successfully",
		Data:    host,
	})
}

// GetHost 按主机名查询主机
func (h *HostHandler) GetHost(c *gin.Context) {
	hostname := c.Param("hostname")

	host, err := h.service.GetHost(c.Request.Context(), hostname)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to get host",
			Error:   err.Error(),
		})
		return
	}
	if host == nil {
		c.JSON(http.StatusNotFound, model.APIResponse{
			Code:    http.StatusNotFound,
			Status:  "error",
			Message: "Host not found",
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    host,
	})
}

// ListHosts 列出全部主机
func (h *HostHandler) ListHosts(c *gin.Context) {
	hosts, err := h.service.ListHosts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to list hosts",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    hosts,
	})
}

// DeleteHost 删除主机
func (h *HostHandler) DeleteHost(c *gin.Context) {
	hostname := c.Param("hostname")

	if err := h.service.DeleteHost(c.Request.Context(), hostname); err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to delete host",
			Error:   err.Error(),
		})
		return
	}

	logger.WithFields(map[string]interface{}{
		"path":      c.Request.URL.String(),
		"operation": "delete_host",
		"hostname":  hostname,
		"func_name": "handler.fleet.host.DeleteHost",
	}).Info("主机删除成功")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Host deleted successfully",
	})
}

// CreateRoom 登记教室
func (h *HostHandler) CreateRoom(c *gin.Context) {
	var room fleetModel.Room
	if err := c.ShouldBindJSON(&room); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	if err := h.service.CreateRoom(c.Request.Context(), &room); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Failed to create room",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Room created successfully",
		Data:    room,
	})
}

// ListRooms 列出全部教室
func (h *HostHandler) ListRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to list rooms",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    rooms,
	})
}

// CreateGroup 登记主机组
func (h *HostHandler) CreateGroup(c *gin.Context) {
	var group fleetModel.Group
	if err := c.ShouldBindJSON(&group); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	if err := h.service.CreateGroup(c.Request.Context(), &group); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "error",
			Message: "Failed to create group",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Group created successfully",
		Data:    group,
	})
}

// ListGroups 列出全部主机组
func (h *HostHandler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "error",
			Message: "Failed to list groups",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Success",
		Data:    groups,
	})
}
