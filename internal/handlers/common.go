package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/tenant"
)

// principal returns the tenant principal set by the auth middleware.
func principal(c *gin.Context) *tenant.Principal {
	if v, ok := c.Get("principal"); ok {
		if p, ok := v.(*tenant.Principal); ok {
			return p
		}
	}
	return nil
}
