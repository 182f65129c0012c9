package services

import (
	"errors"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var ErrProjectNotFound = response.NewNotFoundCode("NOT_FOUND", "project not found")

type ProjectService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db, resolver: tenant.NewResolver(db)}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Status   string `form:"status"`
	ClientID uint   `form:"client_id"`
	Keyword  string `form:"keyword"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name        string     `json:"name" binding:"required"`
	ClientID    uint       `json:"client_id" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status" binding:"omitempty,oneof=active on_hold completed cancelled"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Budget      float64    `json:"budget"`
	WorkspaceID *uint      `json:"workspace_id"`
}

type UpdateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" binding:"omitempty,oneof=active on_hold completed cancelled"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Budget      *float64   `json:"budget"`
}

// List returns paginated projects in the caller's scope. Client-role
// principals only see projects of their own client record.
func (s *ProjectService) List(p *tenant.Principal, req *ProjectListRequest) (*ProjectListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceProjects, tenant.ActionView); err != nil {
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

	query := tenant.ScopedQuery(s.db.Model(&models.Project{}), scope, p)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+req.Keyword+"%")
	}

	var total int64
	query.Count(&total)

	var projects []models.Project
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Client").Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: projects}, nil
}

// GetByID returns one project in the caller's scope.
func (s *ProjectService) GetByID(p *tenant.Principal, id uint) (*models.Project, error) {
	if err := tenant.Require(p, tenant.ResourceProjects, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var project models.Project
	query := tenant.ScopedQuery(s.db.Where("id = ?", id), scope, p)
	if err := query.Preload("Client").First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// Create creates a project for a client in the caller's workspace.
func (s *ProjectService) Create(p *tenant.Principal, req *CreateProjectRequest) (*models.Project, error) {
	if err := tenant.Require(p, tenant.ResourceProjects, tenant.ActionCreate); err != nil {
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

	status := req.Status
	if status == "" {
		status = models.ProjectStatusActive
	}
	project := models.Project{
		WorkspaceID: wsID,
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Budget:      req.Budget,
		CreatedBy:   p.UserID,
	}
	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Update edits a project.
func (s *ProjectService) Update(p *tenant.Principal, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	if err := tenant.Require(p, tenant.ResourceProjects, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	project, err := s.GetByID(p, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.StartDate != nil {
		updates["start_date"] = req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = req.EndDate
	}
	if req.Budget != nil {
		updates["budget"] = *req.Budget
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.Model(project).Updates(updates).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a project. Documents referencing it keep their project_id
// pointing at the soft-deleted row.
func (s *ProjectService) Delete(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceProjects, tenant.ActionDelete); err != nil {
		return err
	}
	project, err := s.GetByID(p, id)
	if err != nil {
		return err
	}
	return s.db.Delete(project).Error
}
