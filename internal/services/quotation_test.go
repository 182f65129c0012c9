package services

import (
	"testing"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
)

func (f *testFixture) createQuotation(t *testing.T, items ...InvoiceItemRequest) *models.Quotation {
	t.Helper()

	svc := NewQuotationService(f.db)
	quotation, err := svc.Create(f.admin, &CreateQuotationRequest{
		ClientID: f.client.ID,
		TaxRate:  10,
		Items:    items,
	})
	if err != nil {
		t.Fatalf("failed to create quotation: %v", err)
	}
	return quotation
}

func TestQuotationCreate_TotalsFromItems(t *testing.T) {
	f := newTestFixture(t)

	quotation := f.createQuotation(t,
		InvoiceItemRequest{Description: "Design", Quantity: 2, UnitPrice: 300},
		InvoiceItemRequest{Description: "Development", Quantity: 5, UnitPrice: 80},
	)

	if quotation.Subtotal != 1000 {
		t.Errorf("subtotal = %v, expected 1000", quotation.Subtotal)
	}
	if quotation.TaxAmount != 100 {
		t.Errorf("tax = %v, expected 100", quotation.TaxAmount)
	}
	if quotation.TotalAmount != 1100 {
		t.Errorf("total = %v, expected 1100", quotation.TotalAmount)
	}
	if quotation.Status != models.QuotationStatusDraft {
		t.Errorf("status = %q, expected draft", quotation.Status)
	}
	if quotation.QuotationNumber == "" {
		t.Error("quotation number should be generated")
	}
	if quotation.ValidUntil == nil {
		t.Error("validity date should default")
	}
}

func TestQuotationMarkSent(t *testing.T) {
	f := newTestFixture(t)
	svc := NewQuotationService(f.db)

	quotation := f.createQuotation(t, InvoiceItemRequest{Description: "Design", UnitPrice: 500})

	sent, err := svc.MarkSent(f.admin, quotation.ID)
	if err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	if sent.Status != models.QuotationStatusSent {
		t.Errorf("status = %q, expected sent", sent.Status)
	}

	// Sending twice is a no-op, not an error.
	if _, err := svc.MarkSent(f.admin, quotation.ID); err != nil {
		t.Errorf("second MarkSent() error = %v", err)
	}
}

func TestQuotationConvert_RequiresAccepted(t *testing.T) {
	f := newTestFixture(t)
	svc := NewQuotationService(f.db)

	quotation := f.createQuotation(t, InvoiceItemRequest{Description: "Design", UnitPrice: 500})

	if _, err := svc.ConvertToInvoice(f.admin, quotation.ID, nil); err != ErrQuotationNotConvertible {
		t.Errorf("converting a draft should fail, got %v", err)
	}
}

func TestQuotationConvert_CopiesDocument(t *testing.T) {
	f := newTestFixture(t)
	svc := NewQuotationService(f.db)

	quotation := f.createQuotation(t,
		InvoiceItemRequest{Description: "Design", Quantity: 2, UnitPrice: 300},
	)
	accepted := models.QuotationStatusAccepted
	if _, err := svc.Update(f.admin, quotation.ID, &UpdateQuotationRequest{Status: &accepted}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	due := time.Now().AddDate(0, 0, 45)
	invoice, err := svc.ConvertToInvoice(f.admin, quotation.ID, &ConvertQuotationRequest{DueDate: &due})
	if err != nil {
		t.Fatalf("ConvertToInvoice() error = %v", err)
	}

	if invoice.ClientID != quotation.ClientID {
		t.Error("invoice should keep the quotation's client")
	}
	if invoice.TotalAmount != quotation.TotalAmount {
		t.Errorf("invoice total = %v, expected %v", invoice.TotalAmount, quotation.TotalAmount)
	}
	if invoice.Status != models.InvoiceStatusDraft {
		t.Errorf("invoice status = %q, expected draft", invoice.Status)
	}
	if len(invoice.Items) != 1 || invoice.Items[0].Amount != 600 {
		t.Errorf("invoice items not copied: %+v", invoice.Items)
	}

	got, err := svc.GetByID(f.admin, quotation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.InvoiceID == nil || *got.InvoiceID != invoice.ID {
		t.Error("quotation should record the invoice id")
	}

	// Converting again must fail.
	if _, err := svc.ConvertToInvoice(f.admin, quotation.ID, nil); err != ErrQuotationAlreadyConverted {
		t.Errorf("second conversion error = %v, expected ErrQuotationAlreadyConverted", err)
	}
}

func TestQuotationFrozenAfterConversion(t *testing.T) {
	f := newTestFixture(t)
	svc := NewQuotationService(f.db)

	quotation := f.createQuotation(t, InvoiceItemRequest{Description: "Design", UnitPrice: 500})
	accepted := models.QuotationStatusAccepted
	if _, err := svc.Update(f.admin, quotation.ID, &UpdateQuotationRequest{Status: &accepted}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ConvertToInvoice(f.admin, quotation.ID, nil); err != nil {
		t.Fatal(err)
	}

	notes := "late edit"
	if _, err := svc.Update(f.admin, quotation.ID, &UpdateQuotationRequest{Notes: &notes}); err != ErrQuotationAlreadyConverted {
		t.Errorf("update after conversion error = %v, expected ErrQuotationAlreadyConverted", err)
	}
	if err := svc.Delete(f.admin, quotation.ID); err != ErrQuotationAlreadyConverted {
		t.Errorf("delete after conversion error = %v, expected ErrQuotationAlreadyConverted", err)
	}
	if _, err := svc.MarkSent(f.admin, quotation.ID); err != ErrQuotationAlreadyConverted {
		t.Errorf("send after conversion error = %v, expected ErrQuotationAlreadyConverted", err)
	}
}

func TestQuotationUpdate_RecomputesTotals(t *testing.T) {
	f := newTestFixture(t)
	svc := NewQuotationService(f.db)

	quotation := f.createQuotation(t, InvoiceItemRequest{Description: "Design", UnitPrice: 500})

	items := []InvoiceItemRequest{
		{Description: "Design", Quantity: 1, UnitPrice: 800},
		{Description: "Hosting", Quantity: 12, UnitPrice: 25},
	}
	updated, err := svc.Update(f.admin, quotation.ID, &UpdateQuotationRequest{Items: &items})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Subtotal != 1100 {
		t.Errorf("subtotal = %v, expected 1100", updated.Subtotal)
	}
	if updated.TotalAmount != 1210 {
		t.Errorf("total = %v, expected 1210", updated.TotalAmount)
	}

	var count int64
	f.db.Model(&models.QuotationItem{}).Where("quotation_id = ?", quotation.ID).Count(&count)
	if count != 2 {
		t.Errorf("stored items = %d, expected 2", count)
	}
}

func TestExpireLapsedQuotations(t *testing.T) {
	f := newTestFixture(t)
	svc := NewQuotationService(f.db)

	past := time.Now().AddDate(0, 0, -5)
	future := time.Now().AddDate(0, 0, 5)

	lapsed, err := svc.Create(f.admin, &CreateQuotationRequest{
		ClientID: f.client.ID, Subtotal: 100, ValidUntil: &past,
	})
	if err != nil {
		t.Fatal(err)
	}
	open, err := svc.Create(f.admin, &CreateQuotationRequest{
		ClientID: f.client.ID, Subtotal: 100, ValidUntil: &future,
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := svc.ExpireLapsedQuotations()
	if err != nil {
		t.Fatalf("ExpireLapsedQuotations() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, expected 1", n)
	}

	check := func(id uint, want string) {
		var q models.Quotation
		if err := f.db.First(&q, id).Error; err != nil {
			t.Fatal(err)
		}
		if q.Status != want {
			t.Errorf("quotation %d status = %q, expected %q", id, q.Status, want)
		}
	}
	check(lapsed.ID, models.QuotationStatusExpired)
	check(open.ID, models.QuotationStatusDraft)
}
