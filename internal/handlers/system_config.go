package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(db *gorm.DB) *SystemConfigHandler {
	return &SystemConfigHandler{
		configService: services.NewSystemConfigService(db),
	}
}

// GetBillingDefaults returns the platform-wide document defaults.
// GET /api/system/billing
func (h *SystemConfigHandler) GetBillingDefaults(c *gin.Context) {
	if err := tenant.Require(principal(c), tenant.ResourceSettings, tenant.ActionView); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.configService.GetBillingDefaults())
}

// UpdateBillingDefaults edits the document defaults.
// PUT /api/system/billing
func (h *SystemConfigHandler) UpdateBillingDefaults(c *gin.Context) {
	if err := tenant.Require(principal(c), tenant.ResourceSettings, tenant.ActionUpdate); err != nil {
		response.Error(c, err)
		return
	}

	var req services.UpdateBillingDefaultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.configService.UpdateBillingDefaults(&req); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.configService.GetBillingDefaults())
}

// GetLDAPConfig returns the directory settings with the password masked.
// GET /api/system/ldap
func (h *SystemConfigHandler) GetLDAPConfig(c *gin.Context) {
	if err := tenant.Require(principal(c), tenant.ResourceSettings, tenant.ActionView); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.configService.GetLDAPConfig())
}

// UpdateLDAPConfig edits the directory settings.
// PUT /api/system/ldap
func (h *SystemConfigHandler) UpdateLDAPConfig(c *gin.Context) {
	if err := tenant.Require(principal(c), tenant.ResourceSettings, tenant.ActionUpdate); err != nil {
		response.Error(c, err)
		return
	}

	var req services.UpdateLDAPConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.configService.UpdateLDAPConfig(&req); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.configService.GetLDAPConfig())
}
