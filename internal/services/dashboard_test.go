package services

import (
	"testing"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
)

func TestDashboardStats_ScopedAggregates(t *testing.T) {
	f := newTestFixture(t)
	invoiceSvc := NewInvoiceService(f.db)

	due := time.Now().AddDate(0, 0, 30)
	inv1 := f.createInvoice(t, 1000, due)
	f.createInvoice(t, 500, due)

	if _, err := invoiceSvc.RecordPayment(f.admin, inv1.ID, &RecordPaymentRequest{Amount: 400}); err != nil {
		t.Fatalf("RecordPayment() error = %v", err)
	}

	// Another workspace's figures must not bleed into the totals.
	other := models.Workspace{Name: "Other", Slug: "other", Status: models.WorkspaceStatusActive}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}
	foreignClient := models.Client{WorkspaceID: other.ID, Name: "Initech"}
	if err := f.db.Create(&foreignClient).Error; err != nil {
		t.Fatal(err)
	}
	if err := f.db.Create(&models.Invoice{
		WorkspaceID: other.ID, ClientID: foreignClient.ID,
		InvoiceNumber: "INV-FOREIGN", Status: models.InvoiceStatusSent,
		TotalAmount: 9999, DueDate: due,
	}).Error; err != nil {
		t.Fatal(err)
	}

	svc := NewDashboardService(f.db)
	stats, err := svc.GetStats(f.admin)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	if stats.ClientCount != 1 {
		t.Errorf("client count = %d, expected 1", stats.ClientCount)
	}
	if stats.InvoiceCount != 2 {
		t.Errorf("invoice count = %d, expected 2", stats.InvoiceCount)
	}
	if stats.TotalInvoiced != 1500 {
		t.Errorf("total invoiced = %v, expected 1500", stats.TotalInvoiced)
	}
	if stats.TotalPaid != 400 {
		t.Errorf("total paid = %v, expected 400", stats.TotalPaid)
	}
	if stats.TotalOutstanding != 1100 {
		t.Errorf("outstanding = %v, expected 1100", stats.TotalOutstanding)
	}
	if stats.RevenueThisMonth != 400 {
		t.Errorf("revenue this month = %v, expected 400", stats.RevenueThisMonth)
	}
}

func TestDashboardStats_ExcludesCancelledInvoices(t *testing.T) {
	f := newTestFixture(t)
	invoiceSvc := NewInvoiceService(f.db)

	due := time.Now().AddDate(0, 0, 30)
	f.createInvoice(t, 1000, due)
	cancelled := f.createInvoice(t, 700, due)
	if _, err := invoiceSvc.Cancel(f.admin, cancelled.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	stats, err := NewDashboardService(f.db).GetStats(f.admin)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.InvoiceCount != 1 {
		t.Errorf("invoice count = %d, expected 1", stats.InvoiceCount)
	}
	if stats.TotalInvoiced != 1000 {
		t.Errorf("total invoiced = %v, expected 1000", stats.TotalInvoiced)
	}
}

func TestDashboardMonthlyRevenue(t *testing.T) {
	f := newTestFixture(t)

	now := time.Now()
	lastMonth := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.Local).AddDate(0, -1, 0)

	inv := f.createInvoice(t, 1000, now.AddDate(0, 0, 30))
	payments := []models.Payment{
		{WorkspaceID: f.workspace.ID, InvoiceID: inv.ID, Amount: 250, PaymentDate: now},
		{WorkspaceID: f.workspace.ID, InvoiceID: inv.ID, Amount: 100, PaymentDate: lastMonth},
	}
	for i := range payments {
		if err := f.db.Create(&payments[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	svc := NewDashboardService(f.db)
	revenue, err := svc.GetMonthlyRevenue(f.admin, 3)
	if err != nil {
		t.Fatalf("GetMonthlyRevenue() error = %v", err)
	}
	if len(revenue) != 3 {
		t.Fatalf("months = %d, expected 3", len(revenue))
	}
	if revenue[2].Amount != 250 {
		t.Errorf("current month = %v, expected 250", revenue[2].Amount)
	}
	if revenue[1].Amount != 100 {
		t.Errorf("previous month = %v, expected 100", revenue[1].Amount)
	}

	// Out-of-range months fall back to a year.
	revenue, err = svc.GetMonthlyRevenue(f.admin, 0)
	if err != nil {
		t.Fatalf("GetMonthlyRevenue() error = %v", err)
	}
	if len(revenue) != 12 {
		t.Errorf("months = %d, expected 12", len(revenue))
	}
}

func TestDashboardRecentActivity(t *testing.T) {
	f := newTestFixture(t)

	due := time.Now().AddDate(0, 0, 30)
	for i := 0; i < 7; i++ {
		f.createInvoice(t, 100, due)
	}

	svc := NewDashboardService(f.db)
	activity, err := svc.GetRecentActivity(f.admin, 5)
	if err != nil {
		t.Fatalf("GetRecentActivity() error = %v", err)
	}
	if len(activity.Invoices) != 5 {
		t.Errorf("recent invoices = %d, expected 5", len(activity.Invoices))
	}
	for _, inv := range activity.Invoices {
		if inv.Client == nil || inv.Client.Name != "Globex" {
			t.Error("client should be preloaded")
			break
		}
	}
}

func TestDashboardStats_RequiresViewPermission(t *testing.T) {
	f := newTestFixture(t)
	svc := NewDashboardService(f.db)

	// Every staff role can read the dashboard, so fabricate a role the
	// matrix does not know.
	stranger := &tenant.Principal{UserID: 9, Username: "x", Role: "intern", WorkspaceID: &f.workspace.ID}
	if _, err := svc.GetStats(stranger); errCode(err) != "PERMISSION_DENIED" {
		t.Errorf("errCode = %q, expected PERMISSION_DENIED", errCode(err))
	}
}
