package main

import (
	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/handlers"
	"github.com/kanzhen/bizmanage/internal/metrics"
	"github.com/kanzhen/bizmanage/internal/middleware"
	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	db := models.GetDB()

	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())
	r.Use(metrics.Middleware())

	// Rate limiter for the public auth endpoints
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health check and metrics scrape
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", metrics.Handler())

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/signup", svc.authHandler.Signup)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(db)
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)
			protected.GET("/dashboard/revenue", dashboardHandler.GetMonthlyRevenue)
			protected.GET("/dashboard/recent", dashboardHandler.GetRecentActivity)

			// Workspaces
			workspaceHandler := handlers.NewWorkspaceHandler(db, svc.cfg)
			protected.GET("/workspaces", workspaceHandler.List)
			protected.GET("/workspaces/:id", workspaceHandler.Get)
			protected.POST("/workspaces", workspaceHandler.Create)
			protected.PUT("/workspaces/:id", workspaceHandler.Update)
			protected.GET("/workspaces/:id/members", workspaceHandler.ListMembers)
			protected.POST("/workspaces/:id/members", workspaceHandler.AddMember)
			protected.DELETE("/workspaces/:id/members/:userId", workspaceHandler.RemoveMember)

			// Users
			userHandler := handlers.NewUserHandler(db)
			protected.GET("/users", userHandler.List)
			protected.GET("/users/:id", userHandler.Get)
			protected.POST("/users", userHandler.Create)
			protected.PUT("/users/:id", userHandler.Update)
			protected.DELETE("/users/:id", userHandler.Deactivate)

			// Clients
			clientHandler := handlers.NewClientHandler(db)
			protected.GET("/clients", clientHandler.List)
			protected.GET("/clients/:id", clientHandler.Get)
			protected.POST("/clients", clientHandler.Create)
			protected.PUT("/clients/:id", clientHandler.Update)
			protected.DELETE("/clients/:id", clientHandler.Delete)

			// Projects
			projectHandler := handlers.NewProjectHandler(db)
			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.Get)
			protected.POST("/projects", projectHandler.Create)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			// Quotations
			quotationHandler := handlers.NewQuotationHandler(db, svc.notifyService)
			protected.GET("/quotations", quotationHandler.List)
			protected.GET("/quotations/:id", quotationHandler.Get)
			protected.POST("/quotations", quotationHandler.Create)
			protected.PUT("/quotations/:id", quotationHandler.Update)
			protected.DELETE("/quotations/:id", quotationHandler.Delete)
			protected.POST("/quotations/:id/send", quotationHandler.Send)
			protected.POST("/quotations/:id/convert", quotationHandler.Convert)

			// Invoices and payments
			invoiceHandler := handlers.NewInvoiceHandler(db, svc.notifyService)
			protected.GET("/invoices", invoiceHandler.List)
			protected.GET("/invoices/:id", invoiceHandler.Get)
			protected.POST("/invoices", invoiceHandler.Create)
			protected.PUT("/invoices/:id", invoiceHandler.Update)
			protected.DELETE("/invoices/:id", invoiceHandler.Delete)
			protected.POST("/invoices/:id/send", invoiceHandler.Send)
			protected.POST("/invoices/:id/cancel", invoiceHandler.Cancel)
			protected.GET("/invoices/:id/payments", invoiceHandler.ListPayments)
			protected.POST("/invoices/:id/payments", invoiceHandler.RecordPayment)
			protected.GET("/payments", invoiceHandler.ListAllPayments)

			// Files
			fileHandler := handlers.NewFileHandler(db)
			protected.GET("/files", fileHandler.List)
			protected.GET("/files/:id", fileHandler.Get)
			protected.POST("/files", fileHandler.Register)
			protected.DELETE("/files/:id", fileHandler.Delete)

			// Conversations
			conversationHandler := handlers.NewConversationHandler(db)
			protected.GET("/conversations", conversationHandler.List)
			protected.POST("/conversations", conversationHandler.Create)
			protected.GET("/conversations/:id/messages", conversationHandler.Messages)
			protected.POST("/conversations/:id/messages", conversationHandler.PostMessage)
			protected.POST("/conversations/:id/close", conversationHandler.Close)

			// System settings (gated by the settings permission)
			systemConfigHandler := handlers.NewSystemConfigHandler(db)
			protected.GET("/system/billing", systemConfigHandler.GetBillingDefaults)
			protected.PUT("/system/billing", systemConfigHandler.UpdateBillingDefaults)
			protected.GET("/system/ldap", systemConfigHandler.GetLDAPConfig)
			protected.PUT("/system/ldap", systemConfigHandler.UpdateLDAPConfig)

			systemLogHandler := handlers.NewSystemLogHandler(db)
			protected.GET("/system/logs", systemLogHandler.List)
			protected.GET("/system/logs/modules", systemLogHandler.GetModules)
		}
	}
}
