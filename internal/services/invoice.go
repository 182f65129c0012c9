package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

// paidEpsilon absorbs float rounding when deciding whether an invoice is
// already settled.
const paidEpsilon = 0.01

// Ledger errors. Each precondition failure is a distinct machine-readable
// code so API clients can dispatch on it.
var (
	ErrInvoiceNotFound  = response.NewNotFoundCode("NOT_FOUND", "invoice not found")
	ErrInvalidAmount    = response.NewBadRequestCode("INVALID_AMOUNT", "payment amount must be greater than zero")
	ErrAlreadyPaid      = response.NewBadRequestCode("ALREADY_PAID", "invoice is already fully paid")
	ErrInvoiceCancelled = response.NewBadRequestCode("INVOICE_CANCELLED", "cannot record a payment against a cancelled invoice")
	ErrInvoiceHasPayments = response.NewConflict("invoice has recorded payments and cannot be deleted")
	ErrPaymentConflict    = response.NewConflict("invoice was modified concurrently, please retry")
)

func newOverpaymentError(outstanding float64) *response.AppError {
	return response.NewBadRequestCode("OVERPAYMENT_REJECTED",
		fmt.Sprintf("payment exceeds the outstanding amount of %.2f", outstanding))
}

type InvoiceService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db, resolver: tenant.NewResolver(db)}
}

type InvoiceListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Status   string `form:"status"`
	ClientID uint   `form:"client_id"`
	Keyword  string `form:"keyword"`
}

type InvoiceListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Invoice `json:"items"`
}

type InvoiceItemRequest struct {
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	SortOrder   int     `json:"sort_order"`
}

type CreateInvoiceRequest struct {
	ClientID      uint                 `json:"client_id" binding:"required"`
	ProjectID     *uint                `json:"project_id"`
	WorkspaceID   *uint                `json:"workspace_id"`
	InvoiceNumber string               `json:"invoice_number"`
	IssueDate     *time.Time           `json:"issue_date"`
	DueDate       *time.Time           `json:"due_date"`
	TaxRate       float64              `json:"tax_rate"`
	Subtotal      float64              `json:"subtotal"`
	Notes         string               `json:"notes"`
	Items         []InvoiceItemRequest `json:"items"`
}

type UpdateInvoiceRequest struct {
	ClientID  *uint                 `json:"client_id"`
	ProjectID *uint                 `json:"project_id"`
	IssueDate *time.Time            `json:"issue_date"`
	DueDate   *time.Time            `json:"due_date"`
	TaxRate   *float64              `json:"tax_rate"`
	Subtotal  *float64              `json:"subtotal"`
	Notes     *string               `json:"notes"`
	Items     *[]InvoiceItemRequest `json:"items"`
}

type RecordPaymentRequest struct {
	Amount          float64    `json:"amount" binding:"required"`
	Method          string     `json:"method"`
	PaymentDate     *time.Time `json:"payment_date"`
	ReferenceNumber string     `json:"reference_number"`
	Notes           string     `json:"notes"`
}

// DeriveInvoiceStatus recomputes an invoice's status from its financial
// state. cancelled never changes; every other status is fully determined by
// the amounts and the due date, compared at day granularity.
func DeriveInvoiceStatus(current string, totalAmount, paidAmount float64, dueDate, now time.Time) string {
	if current == models.InvoiceStatusCancelled {
		return current
	}
	pastDue := dayOf(now).After(dayOf(dueDate))
	switch {
	case paidAmount >= totalAmount:
		return models.InvoiceStatusPaid
	case paidAmount > 0:
		if pastDue {
			return models.InvoiceStatusOverdue
		}
		return models.InvoiceStatusPartial
	default:
		if pastDue {
			return models.InvoiceStatusOverdue
		}
		if current == models.InvoiceStatusDraft || current == "" {
			return models.InvoiceStatusDraft
		}
		return models.InvoiceStatusSent
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// computeTotals derives the money columns. When items are supplied the
// subtotal is the sum of their line amounts; the caller-provided subtotal is
// honoured only on the manual-totals path (no items).
func computeTotals(items []models.InvoiceItem, manualSubtotal, taxRate float64) (subtotal, taxAmount, total float64) {
	if len(items) > 0 {
		for _, it := range items {
			subtotal += it.Amount
		}
	} else {
		subtotal = manualSubtotal
	}
	taxAmount = subtotal * taxRate / 100
	total = subtotal + taxAmount
	return subtotal, taxAmount, total
}

func buildInvoiceItems(reqs []InvoiceItemRequest) []models.InvoiceItem {
	items := make([]models.InvoiceItem, 0, len(reqs))
	for i, r := range reqs {
		qty := r.Quantity
		if qty == 0 {
			qty = 1
		}
		order := r.SortOrder
		if order == 0 {
			order = i
		}
		items = append(items, models.InvoiceItem{
			Description: r.Description,
			Quantity:    qty,
			UnitPrice:   r.UnitPrice,
			Amount:      qty * r.UnitPrice,
			SortOrder:   order,
		})
	}
	return items
}

// generateDocumentNumber builds a unique human-readable number like
// INV-20260829-1A2B3C4D.
func generateDocumentNumber(prefix string) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"), frag)
}

// List returns paginated invoices visible to the principal.
func (s *InvoiceService) List(p *tenant.Principal, req *InvoiceListRequest) (*InvoiceListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionView); err != nil {
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
		req.PageSize = 10
	}

	var invoices []models.Invoice
	var total int64

	query := tenant.ScopedQuery(s.db.Model(&models.Invoice{}), scope, p)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.Keyword != "" {
		query = query.Where("invoice_number LIKE ?", "%"+req.Keyword+"%")
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Client").Preload("Items").
		Offset(offset).Limit(req.PageSize).Order("created_at DESC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}

	return &InvoiceListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    invoices,
	}, nil
}

// GetByID returns one invoice. Out-of-scope lookups report NotFound rather
// than Forbidden so tenant existence never leaks.
func (s *InvoiceService) GetByID(p *tenant.Principal, id uint) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.findScoped(s.db, scope, p, id, "Client", "Items")
}

func (s *InvoiceService) findScoped(db *gorm.DB, scope tenant.Scope, p *tenant.Principal, id uint, preloads ...string) (*models.Invoice, error) {
	query := tenant.ScopedQuery(db.Where("id = ?", id), scope, p)
	for _, pre := range preloads {
		query = query.Preload(pre)
	}
	var invoice models.Invoice
	if err := query.First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if !tenant.CanAccessClientRow(p, invoice.ClientID) {
		return nil, ErrInvoiceNotFound
	}
	return &invoice, nil
}

// Create creates a new invoice with derived totals and status.
func (s *InvoiceService) Create(p *tenant.Principal, req *CreateInvoiceRequest) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionCreate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	wsID, err := workspaceForWrite(s.db, scope, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	// The referenced client must live in the same workspace.
	var client models.Client
	if err := s.db.Where("id = ? AND workspace_id = ?", req.ClientID, wsID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundCode("NOT_FOUND", "client not found")
		}
		return nil, err
	}

	now := time.Now()
	issueDate := now
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}
	dueDate := issueDate.AddDate(0, 0, 30)
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}
	number := req.InvoiceNumber
	if number == "" {
		number = generateDocumentNumber("INV")
	}

	items := buildInvoiceItems(req.Items)
	subtotal, taxAmount, total := computeTotals(items, req.Subtotal, req.TaxRate)

	invoice := models.Invoice{
		WorkspaceID:   wsID,
		ClientID:      req.ClientID,
		ProjectID:     req.ProjectID,
		InvoiceNumber: number,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Subtotal:      subtotal,
		TaxRate:       req.TaxRate,
		TaxAmount:     taxAmount,
		TotalAmount:   total,
		Status:        DeriveInvoiceStatus(models.InvoiceStatusDraft, total, 0, dueDate, now),
		Notes:         req.Notes,
		Items:         items,
		CreatedBy:     p.UserID,
	}
	if err := s.db.Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Update edits an invoice and recomputes totals and status. A cancelled
// invoice keeps its status no matter what changes.
func (s *InvoiceService) Update(p *tenant.Principal, id uint, req *UpdateInvoiceRequest) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var result *models.Invoice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := s.findScoped(tx, scope, p, id, "Items")
		if err != nil {
			return err
		}

		if req.ClientID != nil {
			var client models.Client
			if err := tx.Where("id = ? AND workspace_id = ?", *req.ClientID, invoice.WorkspaceID).
				First(&client).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFoundCode("NOT_FOUND", "client not found")
				}
				return err
			}
			invoice.ClientID = *req.ClientID
		}
		if req.ProjectID != nil {
			invoice.ProjectID = req.ProjectID
		}
		if req.IssueDate != nil {
			invoice.IssueDate = *req.IssueDate
		}
		if req.DueDate != nil {
			invoice.DueDate = *req.DueDate
		}
		if req.TaxRate != nil {
			invoice.TaxRate = *req.TaxRate
		}
		if req.Notes != nil {
			invoice.Notes = *req.Notes
		}

		if req.Items != nil {
			if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
				return err
			}
			invoice.Items = buildInvoiceItems(*req.Items)
			for i := range invoice.Items {
				invoice.Items[i].InvoiceID = invoice.ID
			}
			if len(invoice.Items) > 0 {
				if err := tx.Create(&invoice.Items).Error; err != nil {
					return err
				}
			}
		}

		manualSubtotal := invoice.Subtotal
		if req.Subtotal != nil {
			manualSubtotal = *req.Subtotal
		}
		invoice.Subtotal, invoice.TaxAmount, invoice.TotalAmount =
			computeTotals(invoice.Items, manualSubtotal, invoice.TaxRate)
		invoice.Status = DeriveInvoiceStatus(invoice.Status, invoice.TotalAmount,
			invoice.PaidAmount, invoice.DueDate, time.Now())

		if err := tx.Omit("Items", "Client").Save(invoice).Error; err != nil {
			return err
		}
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent moves a draft invoice out of draft; the engine then derives sent,
// partial, paid or overdue from the amounts.
func (s *InvoiceService) MarkSent(p *tenant.Principal, id uint) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionSend); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	invoice, err := s.findScoped(s.db, scope, p, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil, ErrInvoiceCancelled
	}

	status := DeriveInvoiceStatus(models.InvoiceStatusSent, invoice.TotalAmount,
		invoice.PaidAmount, invoice.DueDate, time.Now())
	if err := s.db.Model(invoice).Update("status", status).Error; err != nil {
		return nil, err
	}
	invoice.Status = status
	return invoice, nil
}

// Cancel puts the invoice into its terminal state. Recorded payments remain
// as historical fact.
func (s *InvoiceService) Cancel(p *tenant.Principal, id uint) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	invoice, err := s.findScoped(s.db, scope, p, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return invoice, nil
	}
	if err := s.db.Model(invoice).Update("status", models.InvoiceStatusCancelled).Error; err != nil {
		return nil, err
	}
	invoice.Status = models.InvoiceStatusCancelled
	return invoice, nil
}

// Delete removes an invoice. Invoices carrying payments must not disappear.
func (s *InvoiceService) Delete(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionDelete); err != nil {
		return err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return err
	}
	invoice, err := s.findScoped(s.db, scope, p, id)
	if err != nil {
		return err
	}

	var paymentCount int64
	if err := s.db.Model(&models.Payment{}).Where("invoice_id = ?", invoice.ID).
		Count(&paymentCount).Error; err != nil {
		return err
	}
	if paymentCount > 0 {
		return ErrInvoiceHasPayments
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(invoice).Error
	})
}

// RecordPayment appends an immutable payment and advances the ledger.
// Preconditions are checked in a fixed order so each failure mode is stable
// for clients. The paid_amount update is a compare-and-set against the value
// read at the start of the transaction; two concurrent submissions that both
// pass validation against the same snapshot cannot both commit.
func (s *InvoiceService) RecordPayment(p *tenant.Principal, invoiceID uint, req *RecordPaymentRequest) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourcePayments, tenant.ActionCreate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var result *models.Invoice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := s.findScoped(tx, scope, p, invoiceID)
		if err != nil {
			return err
		}

		if req.Amount <= 0 {
			return ErrInvalidAmount
		}
		outstanding := invoice.OutstandingAmount()
		if req.Amount > outstanding {
			return newOverpaymentError(outstanding)
		}
		if invoice.PaidAmount >= invoice.TotalAmount-paidEpsilon {
			return ErrAlreadyPaid
		}
		if invoice.Status == models.InvoiceStatusCancelled {
			return ErrInvoiceCancelled
		}

		paymentDate := time.Now()
		if req.PaymentDate != nil {
			paymentDate = *req.PaymentDate
		}
		method := req.Method
		if method == "" {
			method = "bank_transfer"
		}
		payment := models.Payment{
			WorkspaceID:     invoice.WorkspaceID,
			InvoiceID:       invoice.ID,
			Amount:          req.Amount,
			Method:          method,
			PaymentDate:     paymentDate,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
			RecordedBy:      p.UserID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		newPaid := invoice.PaidAmount + req.Amount
		if newPaid > invoice.TotalAmount {
			// Defensive clamp; the overpayment check keeps this from binding.
			newPaid = invoice.TotalAmount
		}
		newStatus := DeriveInvoiceStatus(invoice.Status, invoice.TotalAmount,
			newPaid, invoice.DueDate, time.Now())

		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND paid_amount = ?", invoice.ID, invoice.PaidAmount).
			Updates(map[string]interface{}{
				"paid_amount": newPaid,
				"status":      newStatus,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another payment landed between our read and write; roll back
			// so the caller can retry against the fresh outstanding amount.
			return ErrPaymentConflict
		}

		invoice.PaidAmount = newPaid
		invoice.Status = newStatus
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPayments returns the payment history of one invoice.
func (s *InvoiceService) ListPayments(p *tenant.Principal, invoiceID uint) ([]models.Payment, error) {
	if err := tenant.Require(p, tenant.ResourcePayments, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	invoice, err := s.findScoped(s.db, scope, p, invoiceID)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := s.db.Where("invoice_id = ?", invoice.ID).
		Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

type PaymentListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	ClientID uint   `form:"client_id"`
	Method   string `form:"method"`
}

type PaymentListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Payment `json:"items"`
}

// ListAllPayments returns the workspace-wide payment history, newest first.
// Client-role principals only see payments against their own invoices.
func (s *InvoiceService) ListAllPayments(p *tenant.Principal, req *PaymentListRequest) (*PaymentListResponse, error) {
	if err := tenant.Require(p, tenant.ResourcePayments, tenant.ActionView); err != nil {
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
		req.PageSize = 10
	}

	query := scope.ApplyOn(s.db.Model(&models.Payment{}), "payments").
		Joins("JOIN invoices ON invoices.id = payments.invoice_id")
	if frag, params := tenant.ClientPredicate(p, "invoices"); frag != "" {
		query = query.Where(frag, params...)
	}
	if req.ClientID > 0 {
		query = query.Where("invoices.client_id = ?", req.ClientID)
	}
	if req.Method != "" {
		query = query.Where("payments.method = ?", req.Method)
	}

	var total int64
	query.Count(&total)

	var payments []models.Payment
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("payments.payment_date DESC, payments.id DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}

	return &PaymentListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    payments,
	}, nil
}

// RefreshOverdueStatuses sweeps open invoices past their due date into
// overdue. Used by the scheduler; returns the number of invoices updated.
func (s *InvoiceService) RefreshOverdueStatuses() (int64, error) {
	res := s.db.Model(&models.Invoice{}).
		Where("status IN ?", []string{models.InvoiceStatusSent, models.InvoiceStatusPartial}).
		Where("due_date < ?", dayOf(time.Now())).
		Update("status", models.InvoiceStatusOverdue)
	return res.RowsAffected, res.Error
}
