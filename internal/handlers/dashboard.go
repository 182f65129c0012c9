package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: services.NewDashboardService(db),
	}
}

// GetStats returns the workspace's business figures.
// GET /api/dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboardService.GetStats(principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GetMonthlyRevenue returns payment totals per month.
// GET /api/dashboard/revenue
func (h *DashboardHandler) GetMonthlyRevenue(c *gin.Context) {
	months, _ := strconv.Atoi(c.DefaultQuery("months", "12"))

	revenue, err := h.dashboardService.GetMonthlyRevenue(principal(c), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, revenue)
}

// GetRecentActivity returns the latest documents.
// GET /api/dashboard/recent
func (h *DashboardHandler) GetRecentActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	activity, err := h.dashboardService.GetRecentActivity(principal(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, activity)
}
