package main

import (
	"github.com/kanzhen/bizmanage/internal/config"
	"github.com/kanzhen/bizmanage/internal/handlers"
	"github.com/kanzhen/bizmanage/internal/metrics"
	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/internal/utils"
	"github.com/kanzhen/bizmanage/pkg/logger"
)

// appServices holds the initialized services and handlers shared by the
// router.
type appServices struct {
	cfg           *config.Config
	notifyService *services.NotificationService
	scheduler     *services.SchedulerService
	taskQueue     services.TaskQueue
	worker        *services.Worker
	authHandler   *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services,
// queue, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)
	metrics.Init()

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default data
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// Initialize system logger
	services.InitSystemLogger(models.GetDB())

	// Copy yaml LDAP settings into the config table on first boot
	configSvc := services.NewSystemConfigService(models.GetDB())
	if err := configSvc.SeedLDAPFromConfig(&cfg.LDAP); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed LDAP config")
	}

	// Notification pipeline: email transport, queue and worker
	emailService := services.NewEmailService(&cfg.SMTP)
	notifyService := services.NewNotificationService(models.GetDB(), emailService)

	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notifyService.Process)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notifyService.Process)
			worker.Start()
		}
	}

	// Nightly housekeeping: overdue sweep, quotation expiry, trial
	// reminders, log cleanup
	scheduler := services.NewSchedulerService(models.GetDB(), cfg, notifyService)
	scheduler.Start()

	// Create default platform operator account
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:           cfg,
		notifyService: notifyService,
		scheduler:     scheduler,
		taskQueue:     taskQueue,
		worker:        worker,
		authHandler:   authHandler,
	}
}

// shutdown gracefully stops all background services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
