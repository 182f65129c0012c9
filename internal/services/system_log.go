package services

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

// LogEntry carries the request context attributed to a log row.
type LogEntry struct {
	UserID      *uint
	WorkspaceID *uint
	IP          string
	UserAgent   string
}

func LogInfo(module, action, message string, entry *LogEntry, extra interface{}) {
	writeLog("info", module, action, message, entry, extra)
}

func LogWarning(module, action, message string, entry *LogEntry, extra interface{}) {
	writeLog("warning", module, action, message, entry, extra)
}

func LogError(module, action, message string, entry *LogEntry, extra interface{}) {
	writeLog("error", module, action, message, entry, extra)
}

func writeLog(level, module, action, message string, entry *LogEntry, extra interface{}) {
	if globalDB == nil {
		return
	}
	if entry == nil {
		entry = &LogEntry{}
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	row := &models.SystemLog{
		Level:       level,
		Module:      module,
		Action:      action,
		Message:     message,
		UserID:      entry.UserID,
		WorkspaceID: entry.WorkspaceID,
		IP:          entry.IP,
		UserAgent:   entry.UserAgent,
		Extra:       extraStr,
		CreatedAt:   time.Now(),
	}
	globalDB.Create(row)
}

type SystemLogService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db, resolver: tenant.NewResolver(db)}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"min=1"`
	PageSize  int    `form:"page_size" binding:"min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

// List returns paginated logs. Tenant principals only see rows attributed to
// their own workspace; platform-level rows are super-admin only.
func (s *SystemLogService) List(p *tenant.Principal, req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceSettings, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})
	if id, ok := scope.WorkspaceID(); ok {
		query = query.Where("workspace_id = ?", id)
	}

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (s *SystemLogService) Create(row *models.SystemLog) error {
	return s.db.Create(row).Error
}

// CleanupOldLogs deletes logs older than the retention window. Returns the
// number of deleted rows. Called by the scheduler.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GetRetentionDays reads the retention window from system config.
func (s *SystemLogService) GetRetentionDays() int {
	var cfg models.SystemConfig
	if err := s.db.Where("`key` = ?", "log_retention_days").First(&cfg).Error; err != nil {
		return 30
	}

	days, err := strconv.Atoi(cfg.Value)
	if err != nil {
		return 30
	}
	return days
}
