package services

import (
	"errors"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var ErrClientNotFound = response.NewNotFoundCode("NOT_FOUND", "client not found")

type ClientService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db, resolver: tenant.NewResolver(db)}
}

type ClientListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Keyword  string `form:"keyword"`
}

type ClientListResponse struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Items    []models.Client `json:"items"`
}

type CreateClientRequest struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	TaxNumber   string `json:"tax_number"`
	Notes       string `json:"notes"`
	WorkspaceID *uint  `json:"workspace_id"`
}

type UpdateClientRequest struct {
	Name        *string `json:"name"`
	CompanyName *string `json:"company_name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	TaxNumber   *string `json:"tax_number"`
	Notes       *string `json:"notes"`
}

// List returns paginated clients in the caller's scope.
func (s *ClientService) List(p *tenant.Principal, req *ClientListRequest) (*ClientListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceClients, tenant.ActionView); err != nil {
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

	query := scope.Apply(s.db.Model(&models.Client{}))
	if req.Keyword != "" {
		kw := "%" + req.Keyword + "%"
		query = query.Where("name LIKE ? OR company_name LIKE ? OR email LIKE ?", kw, kw, kw)
	}

	var total int64
	query.Count(&total)

	var clients []models.Client
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").
		Find(&clients).Error; err != nil {
		return nil, err
	}

	return &ClientListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: clients}, nil
}

// GetByID returns one client in the caller's scope.
func (s *ClientService) GetByID(p *tenant.Principal, id uint) (*models.Client, error) {
	if err := tenant.Require(p, tenant.ResourceClients, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var client models.Client
	if err := scope.Apply(s.db.Where("id = ?", id)).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// Create creates a client in the caller's workspace.
func (s *ClientService) Create(p *tenant.Principal, req *CreateClientRequest) (*models.Client, error) {
	if err := tenant.Require(p, tenant.ResourceClients, tenant.ActionCreate); err != nil {
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

	client := models.Client{
		WorkspaceID: wsID,
		Name:        req.Name,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		City:        req.City,
		Country:     req.Country,
		TaxNumber:   req.TaxNumber,
		Notes:       req.Notes,
		CreatedBy:   p.UserID,
	}
	if err := s.db.Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// Update edits a client.
func (s *ClientService) Update(p *tenant.Principal, id uint, req *UpdateClientRequest) (*models.Client, error) {
	if err := tenant.Require(p, tenant.ResourceClients, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	client, err := s.GetByID(p, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.Country != nil {
		updates["country"] = *req.Country
	}
	if req.TaxNumber != nil {
		updates["tax_number"] = *req.TaxNumber
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if len(updates) == 0 {
		return client, nil
	}

	if err := s.db.Model(client).Updates(updates).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// Delete removes a client. Clients referenced by invoices or quotations must
// be kept so the documents stay resolvable.
func (s *ClientService) Delete(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceClients, tenant.ActionDelete); err != nil {
		return err
	}
	client, err := s.GetByID(p, id)
	if err != nil {
		return err
	}

	var invoices, quotations int64
	s.db.Model(&models.Invoice{}).Where("client_id = ?", client.ID).Count(&invoices)
	s.db.Model(&models.Quotation{}).Where("client_id = ?", client.ID).Count(&quotations)
	if invoices > 0 || quotations > 0 {
		return response.NewConflict("client has invoices or quotations and cannot be deleted")
	}

	return s.db.Delete(client).Error
}
