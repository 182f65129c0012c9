package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(db *gorm.DB) *SystemLogHandler {
	return &SystemLogHandler{
		systemLogService: services.NewSystemLogService(db),
	}
}

// List returns paginated log rows within the caller's workspace.
// GET /api/system/logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.systemLogService.List(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetModules returns the distinct module names seen in the log.
// GET /api/system/logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	if err := tenant.Require(principal(c), tenant.ResourceSettings, tenant.ActionView); err != nil {
		response.Error(c, err)
		return
	}

	modules, err := h.systemLogService.GetModules()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}
