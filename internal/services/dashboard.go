package services

import (
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"gorm.io/gorm"
)

type DashboardService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, resolver: tenant.NewResolver(db)}
}

type DashboardStats struct {
	ClientCount      int64   `json:"client_count"`
	ProjectCount     int64   `json:"project_count"`
	ActiveProjects   int64   `json:"active_projects"`
	QuotationCount   int64   `json:"quotation_count"`
	OpenQuotations   int64   `json:"open_quotations"`
	InvoiceCount     int64   `json:"invoice_count"`
	OverdueInvoices  int64   `json:"overdue_invoices"`
	TotalInvoiced    float64 `json:"total_invoiced"`
	TotalPaid        float64 `json:"total_paid"`
	TotalOutstanding float64 `json:"total_outstanding"`
	RevenueThisMonth float64 `json:"revenue_this_month"`
}

type MonthlyRevenue struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// GetStats aggregates the workspace's business figures. Everything is
// computed inside the caller's scope.
func (s *DashboardService) GetStats(p *tenant.Principal) (*DashboardStats, error) {
	if err := tenant.Require(p, tenant.ResourceDashboard, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{}

	tenant.ScopedQuery(s.db.Model(&models.Client{}), scope, p).Count(&stats.ClientCount)
	tenant.ScopedQuery(s.db.Model(&models.Project{}), scope, p).Count(&stats.ProjectCount)
	tenant.ScopedQuery(s.db.Model(&models.Project{}), scope, p).
		Where("status = ?", models.ProjectStatusActive).Count(&stats.ActiveProjects)

	tenant.ScopedQuery(s.db.Model(&models.Quotation{}), scope, p).Count(&stats.QuotationCount)
	tenant.ScopedQuery(s.db.Model(&models.Quotation{}), scope, p).
		Where("status IN ?", []string{models.QuotationStatusDraft, models.QuotationStatusSent}).
		Count(&stats.OpenQuotations)

	invoices := func() *gorm.DB {
		return tenant.ScopedQuery(s.db.Model(&models.Invoice{}), scope, p).
			Where("status <> ?", models.InvoiceStatusCancelled)
	}
	invoices().Count(&stats.InvoiceCount)
	invoices().Where("status = ?", models.InvoiceStatusOverdue).Count(&stats.OverdueInvoices)
	invoices().Select("COALESCE(SUM(total_amount), 0)").Scan(&stats.TotalInvoiced)
	invoices().Select("COALESCE(SUM(paid_amount), 0)").Scan(&stats.TotalPaid)
	stats.TotalOutstanding = stats.TotalInvoiced - stats.TotalPaid

	monthStart := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.Local)
	scope.Apply(s.db.Model(&models.Payment{})).
		Where("payment_date >= ?", monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.RevenueThisMonth)

	return stats, nil
}

// GetMonthlyRevenue returns payment totals per month for the trailing
// window.
func (s *DashboardService) GetMonthlyRevenue(p *tenant.Principal, months int) ([]MonthlyRevenue, error) {
	if err := tenant.Require(p, tenant.ResourceDashboard, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	if months <= 0 || months > 36 {
		months = 12
	}

	now := time.Now()
	result := make([]MonthlyRevenue, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0)

		var amount float64
		scope.Apply(s.db.Model(&models.Payment{})).
			Where("payment_date >= ? AND payment_date < ?", start, end).
			Select("COALESCE(SUM(amount), 0)").Scan(&amount)

		result = append(result, MonthlyRevenue{Month: start.Format("2006-01"), Amount: amount})
	}
	return result, nil
}

// RecentActivity is the latest-documents block on the overview page.
type RecentActivity struct {
	Invoices   []models.Invoice   `json:"invoices"`
	Quotations []models.Quotation `json:"quotations"`
	Payments   []models.Payment   `json:"payments"`
}

func (s *DashboardService) GetRecentActivity(p *tenant.Principal, limit int) (*RecentActivity, error) {
	if err := tenant.Require(p, tenant.ResourceDashboard, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 50 {
		limit = 5
	}

	activity := &RecentActivity{}
	if err := tenant.ScopedQuery(s.db.Model(&models.Invoice{}), scope, p).
		Preload("Client").Order("created_at DESC").Limit(limit).
		Find(&activity.Invoices).Error; err != nil {
		return nil, err
	}
	if err := tenant.ScopedQuery(s.db.Model(&models.Quotation{}), scope, p).
		Preload("Client").Order("created_at DESC").Limit(limit).
		Find(&activity.Quotations).Error; err != nil {
		return nil, err
	}
	if err := scope.Apply(s.db.Model(&models.Payment{})).
		Order("created_at DESC").Limit(limit).
		Find(&activity.Payments).Error; err != nil {
		return nil, err
	}
	return activity, nil
}
