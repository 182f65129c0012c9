package services

import (
	"errors"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrQuotationNotFound         = response.NewNotFoundCode("NOT_FOUND", "quotation not found")
	ErrQuotationAlreadyConverted = response.NewConflict("quotation has already been converted to an invoice")
	ErrQuotationNotConvertible   = response.NewBadRequest("only an accepted quotation can be converted to an invoice")
)

type QuotationService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewQuotationService(db *gorm.DB) *QuotationService {
	return &QuotationService{db: db, resolver: tenant.NewResolver(db)}
}

type QuotationListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Status   string `form:"status"`
	ClientID uint   `form:"client_id"`
	Keyword  string `form:"keyword"`
}

type QuotationListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.Quotation `json:"items"`
}

type CreateQuotationRequest struct {
	ClientID        uint                 `json:"client_id" binding:"required"`
	ProjectID       *uint                `json:"project_id"`
	WorkspaceID     *uint                `json:"workspace_id"`
	QuotationNumber string               `json:"quotation_number"`
	IssueDate       *time.Time           `json:"issue_date"`
	ValidUntil      *time.Time           `json:"valid_until"`
	TaxRate         float64              `json:"tax_rate"`
	Subtotal        float64              `json:"subtotal"`
	Notes           string               `json:"notes"`
	Items           []InvoiceItemRequest `json:"items"`
}

type UpdateQuotationRequest struct {
	ClientID   *uint                 `json:"client_id"`
	ProjectID  *uint                 `json:"project_id"`
	IssueDate  *time.Time            `json:"issue_date"`
	ValidUntil *time.Time            `json:"valid_until"`
	TaxRate    *float64              `json:"tax_rate"`
	Subtotal   *float64              `json:"subtotal"`
	Status     *string               `json:"status" binding:"omitempty,oneof=draft sent accepted declined expired"`
	Notes      *string               `json:"notes"`
	Items      *[]InvoiceItemRequest `json:"items"`
}

type ConvertQuotationRequest struct {
	DueDate *time.Time `json:"due_date"`
}

func buildQuotationItems(reqs []InvoiceItemRequest) []models.QuotationItem {
	items := make([]models.QuotationItem, 0, len(reqs))
	for i, r := range reqs {
		qty := r.Quantity
		if qty == 0 {
			qty = 1
		}
		order := r.SortOrder
		if order == 0 {
			order = i
		}
		items = append(items, models.QuotationItem{
			Description: r.Description,
			Quantity:    qty,
			UnitPrice:   r.UnitPrice,
			Amount:      qty * r.UnitPrice,
			SortOrder:   order,
		})
	}
	return items
}

func quotationSubtotal(items []models.QuotationItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Amount
	}
	return sum
}

// List returns paginated quotations in the caller's scope.
func (s *QuotationService) List(p *tenant.Principal, req *QuotationListRequest) (*QuotationListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceQuotations, tenant.ActionView); err != nil {
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

	query := tenant.ScopedQuery(s.db.Model(&models.Quotation{}), scope, p)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.Keyword != "" {
		query = query.Where("quotation_number LIKE ?", "%"+req.Keyword+"%")
	}

	var total int64
	query.Count(&total)

	var quotations []models.Quotation
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Client").Preload("Items").
		Offset(offset).Limit(req.PageSize).Order("created_at DESC").
		Find(&quotations).Error; err != nil {
		return nil, err
	}

	return &QuotationListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: quotations}, nil
}

// GetByID returns one quotation in the caller's scope.
func (s *QuotationService) GetByID(p *tenant.Principal, id uint) (*models.Quotation, error) {
	if err := tenant.Require(p, tenant.ResourceQuotations, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.findScoped(s.db, scope, p, id)
}

func (s *QuotationService) findScoped(db *gorm.DB, scope tenant.Scope, p *tenant.Principal, id uint) (*models.Quotation, error) {
	var quotation models.Quotation
	query := tenant.ScopedQuery(db.Where("id = ?", id), scope, p)
	if err := query.Preload("Client").Preload("Items").First(&quotation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuotationNotFound
		}
		return nil, err
	}
	if !tenant.CanAccessClientRow(p, quotation.ClientID) {
		return nil, ErrQuotationNotFound
	}
	return &quotation, nil
}

// Create creates a quotation with derived totals.
func (s *QuotationService) Create(p *tenant.Principal, req *CreateQuotationRequest) (*models.Quotation, error) {
	if err := tenant.Require(p, tenant.ResourceQuotations, tenant.ActionCreate); err != nil {
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

	var client models.Client
	if err := s.db.Where("id = ? AND workspace_id = ?", req.ClientID, wsID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}
	validUntil := req.ValidUntil
	if validUntil == nil {
		v := issueDate.AddDate(0, 0, 30)
		validUntil = &v
	}
	number := req.QuotationNumber
	if number == "" {
		number = generateDocumentNumber("QUO")
	}

	items := buildQuotationItems(req.Items)
	subtotal := req.Subtotal
	if len(items) > 0 {
		subtotal = quotationSubtotal(items)
	}
	taxAmount := subtotal * req.TaxRate / 100

	quotation := models.Quotation{
		WorkspaceID:     wsID,
		ClientID:        req.ClientID,
		ProjectID:       req.ProjectID,
		QuotationNumber: number,
		IssueDate:       issueDate,
		ValidUntil:      validUntil,
		Subtotal:        subtotal,
		TaxRate:         req.TaxRate,
		TaxAmount:       taxAmount,
		TotalAmount:     subtotal + taxAmount,
		Status:          models.QuotationStatusDraft,
		Notes:           req.Notes,
		Items:           items,
		CreatedBy:       p.UserID,
	}
	if err := s.db.Create(&quotation).Error; err != nil {
		return nil, err
	}
	return &quotation, nil
}

// Update edits a quotation and recomputes totals. A converted quotation is
// frozen.
func (s *QuotationService) Update(p *tenant.Principal, id uint, req *UpdateQuotationRequest) (*models.Quotation, error) {
	if err := tenant.Require(p, tenant.ResourceQuotations, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var result *models.Quotation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		quotation, err := s.findScoped(tx, scope, p, id)
		if err != nil {
			return err
		}
		if quotation.InvoiceID != nil {
			return ErrQuotationAlreadyConverted
		}

		if req.ClientID != nil {
			var client models.Client
			if err := tx.Where("id = ? AND workspace_id = ?", *req.ClientID, quotation.WorkspaceID).
				First(&client).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrClientNotFound
				}
				return err
			}
			quotation.ClientID = *req.ClientID
		}
		if req.ProjectID != nil {
			quotation.ProjectID = req.ProjectID
		}
		if req.IssueDate != nil {
			quotation.IssueDate = *req.IssueDate
		}
		if req.ValidUntil != nil {
			quotation.ValidUntil = req.ValidUntil
		}
		if req.TaxRate != nil {
			quotation.TaxRate = *req.TaxRate
		}
		if req.Status != nil {
			quotation.Status = *req.Status
		}
		if req.Notes != nil {
			quotation.Notes = *req.Notes
		}

		if req.Items != nil {
			if err := tx.Where("quotation_id = ?", quotation.ID).Delete(&models.QuotationItem{}).Error; err != nil {
				return err
			}
			quotation.Items = buildQuotationItems(*req.Items)
			for i := range quotation.Items {
				quotation.Items[i].QuotationID = quotation.ID
			}
			if len(quotation.Items) > 0 {
				if err := tx.Create(&quotation.Items).Error; err != nil {
					return err
				}
			}
		}

		if len(quotation.Items) > 0 {
			quotation.Subtotal = quotationSubtotal(quotation.Items)
		} else if req.Subtotal != nil {
			quotation.Subtotal = *req.Subtotal
		}
		quotation.TaxAmount = quotation.Subtotal * quotation.TaxRate / 100
		quotation.TotalAmount = quotation.Subtotal + quotation.TaxAmount

		if err := tx.Omit("Items", "Client").Save(quotation).Error; err != nil {
			return err
		}
		result = quotation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent moves a draft quotation to sent.
func (s *QuotationService) MarkSent(p *tenant.Principal, id uint) (*models.Quotation, error) {
	if err := tenant.Require(p, tenant.ResourceQuotations, tenant.ActionSend); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	quotation, err := s.findScoped(s.db, scope, p, id)
	if err != nil {
		return nil, err
	}
	if quotation.InvoiceID != nil {
		return nil, ErrQuotationAlreadyConverted
	}
	if quotation.Status == models.QuotationStatusDraft {
		quotation.Status = models.QuotationStatusSent
		if err := s.db.Model(quotation).Update("status", quotation.Status).Error; err != nil {
			return nil, err
		}
	}
	return quotation, nil
}

// Delete removes a quotation. Converted quotations are kept as the invoice's
// provenance.
func (s *QuotationService) Delete(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceQuotations, tenant.ActionDelete); err != nil {
		return err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return err
	}
	quotation, err := s.findScoped(s.db, scope, p, id)
	if err != nil {
		return err
	}
	if quotation.InvoiceID != nil {
		return ErrQuotationAlreadyConverted
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quotation_id = ?", quotation.ID).Delete(&models.QuotationItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(quotation).Error
	})
}

// ConvertToInvoice turns an accepted quotation into a draft invoice carrying
// the same client, project, items and totals. The quotation records the
// invoice id and cannot be converted twice.
func (s *QuotationService) ConvertToInvoice(p *tenant.Principal, id uint, req *ConvertQuotationRequest) (*models.Invoice, error) {
	if err := tenant.Require(p, tenant.ResourceInvoices, tenant.ActionCreate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var invoice *models.Invoice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		quotation, err := s.findScoped(tx, scope, p, id)
		if err != nil {
			return err
		}
		if quotation.InvoiceID != nil {
			return ErrQuotationAlreadyConverted
		}
		if quotation.Status != models.QuotationStatusAccepted {
			return ErrQuotationNotConvertible
		}

		now := time.Now()
		dueDate := now.AddDate(0, 0, 30)
		if req != nil && req.DueDate != nil {
			dueDate = *req.DueDate
		}

		items := make([]models.InvoiceItem, 0, len(quotation.Items))
		for _, it := range quotation.Items {
			items = append(items, models.InvoiceItem{
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				Amount:      it.Amount,
				SortOrder:   it.SortOrder,
			})
		}

		inv := models.Invoice{
			WorkspaceID:   quotation.WorkspaceID,
			ClientID:      quotation.ClientID,
			ProjectID:     quotation.ProjectID,
			InvoiceNumber: generateDocumentNumber("INV"),
			IssueDate:     now,
			DueDate:       dueDate,
			Subtotal:      quotation.Subtotal,
			TaxRate:       quotation.TaxRate,
			TaxAmount:     quotation.TaxAmount,
			TotalAmount:   quotation.TotalAmount,
			Status:        models.InvoiceStatusDraft,
			Notes:         quotation.Notes,
			Items:         items,
			CreatedBy:     p.UserID,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		if err := tx.Model(quotation).Update("invoice_id", inv.ID).Error; err != nil {
			return err
		}
		invoice = &inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// ExpireLapsedQuotations moves open quotations past their validity date to
// expired. Used by the scheduler.
func (s *QuotationService) ExpireLapsedQuotations() (int64, error) {
	res := s.db.Model(&models.Quotation{}).
		Where("status IN ?", []string{models.QuotationStatusDraft, models.QuotationStatusSent}).
		Where("valid_until IS NOT NULL AND valid_until < ?", startOfToday()).
		Update("status", models.QuotationStatusExpired)
	return res.RowsAffected, res.Error
}
