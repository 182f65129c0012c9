package services

import (
	"fmt"
	"os"
	"time"

	"github.com/kanzhen/bizmanage/internal/config"
	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SchedulerService runs the nightly housekeeping jobs: the overdue invoice
// sweep, quotation expiry, trial expiry and log cleanup. Each job takes a
// database lock first so only one instance runs it.
type SchedulerService struct {
	db           *gorm.DB
	invoiceSvc   *InvoiceService
	quotationSvc *QuotationService
	workspaceSvc *WorkspaceService
	logSvc       *SystemLogService
	notifySvc    *NotificationService
	sweepCron    string
	scheduler    *cron.Cron
	instanceID   string
}

func NewSchedulerService(db *gorm.DB, cfg *config.Config, notifySvc *NotificationService) *SchedulerService {
	hostname, _ := os.Hostname()
	return &SchedulerService{
		db:           db,
		invoiceSvc:   NewInvoiceService(db),
		quotationSvc: NewQuotationService(db),
		workspaceSvc: NewWorkspaceService(db, cfg.Billing.TrialDays),
		logSvc:       NewSystemLogService(db),
		notifySvc:    notifySvc,
		sweepCron:    cfg.Billing.OverdueSweepCron,
		instanceID:   fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

func (s *SchedulerService) Start() {
	s.scheduler = cron.New()

	if _, err := s.scheduler.AddFunc(s.sweepCron, s.runNightlySweep); err != nil {
		logger.Infof("[Scheduler] Failed to register sweep job: %v", err)
		return
	}

	s.scheduler.Start()
	logger.Infof("[Scheduler] Started (sweep cron: %s)", s.sweepCron)
}

func (s *SchedulerService) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *SchedulerService) runNightlySweep() {
	if !s.acquireLock("nightly_sweep", time.Now().Format("2006-01-02"), time.Hour) {
		logger.Infof("[Scheduler] Nightly sweep already taken by another instance")
		return
	}

	s.sweepOverdueInvoices()
	s.expireQuotations()
	s.remindExpiringTrials()
	s.cleanupLogs()
}

// acquireLock inserts a scheduler lock row. The unique (name, key) index
// makes exactly one instance win per period; stale locks are reclaimed after
// their expiry.
func (s *SchedulerService) acquireLock(name, key string, ttl time.Duration) bool {
	now := time.Now()
	s.db.Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Delete(&models.SchedulerLock{})

	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return s.db.Create(&lock).Error == nil
}

func (s *SchedulerService) sweepOverdueInvoices() {
	// Collect the invoices about to flip so reminders go out once, at the
	// moment of the transition.
	var flipping []models.Invoice
	s.db.Preload("Client").
		Where("status IN ?", []string{models.InvoiceStatusSent, models.InvoiceStatusPartial}).
		Where("due_date < ?", startOfToday()).
		Find(&flipping)

	n, err := s.invoiceSvc.RefreshOverdueStatuses()
	if err != nil {
		logger.Infof("[Scheduler] Overdue sweep failed: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("[Scheduler] Marked %d invoices overdue", n)
		LogInfo("scheduler", "overdue_sweep", fmt.Sprintf("marked %d invoices overdue", n), nil, nil)
	}

	if s.notifySvc != nil {
		for i := range flipping {
			if flipping[i].Client != nil && flipping[i].Client.Email != "" {
				flipping[i].Status = models.InvoiceStatusOverdue
				s.notifySvc.NotifyInvoiceOverdue(&flipping[i], flipping[i].Client.Email)
			}
		}
	}
}

func (s *SchedulerService) expireQuotations() {
	n, err := s.quotationSvc.ExpireLapsedQuotations()
	if err != nil {
		logger.Infof("[Scheduler] Quotation expiry failed: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("[Scheduler] Expired %d quotations", n)
	}
}

// remindExpiringTrials mails the workspace admins whose trial ends within
// three days. Lapsed trials are locked out by the resolver itself.
func (s *SchedulerService) remindExpiringTrials() {
	workspaces, err := s.workspaceSvc.ListExpiringTrials(3)
	if err != nil {
		logger.Infof("[Scheduler] Trial reminder query failed: %v", err)
		return
	}

	for i := range workspaces {
		ws := &workspaces[i]
		var admin models.User
		err := s.db.
			Joins("JOIN workspace_memberships ON workspace_memberships.user_id = users.id").
			Where("workspace_memberships.workspace_id = ? AND workspace_memberships.role = ? AND workspace_memberships.is_active = ?",
				ws.ID, "admin", true).
			Order("workspace_memberships.joined_at ASC").
			First(&admin).Error
		if err != nil || admin.Email == "" {
			continue
		}

		if s.notifySvc != nil {
			s.notifySvc.NotifyTrialExpiring(ws.ID, admin.Email)
		}
		LogWarning("scheduler", "trial_expiring",
			fmt.Sprintf("workspace %s trial ends %s", ws.Slug, ws.TrialEndsAt.Format("2006-01-02")),
			&LogEntry{WorkspaceID: &ws.ID}, nil)
	}
}

func (s *SchedulerService) cleanupLogs() {
	deleted, err := s.logSvc.CleanupOldLogs(s.logSvc.GetRetentionDays())
	if err != nil {
		logger.Infof("[Scheduler] Log cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		logger.Infof("[Scheduler] Cleaned up %d old log rows", deleted)
	}
}
