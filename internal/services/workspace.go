package services

import (
	"errors"
	"strings"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var ErrWorkspaceNotFound = response.NewNotFoundCode("NOT_FOUND", "workspace not found")

type WorkspaceService struct {
	db        *gorm.DB
	resolver  *tenant.Resolver
	trialDays int
}

func NewWorkspaceService(db *gorm.DB, trialDays int) *WorkspaceService {
	return &WorkspaceService{db: db, resolver: tenant.NewResolver(db), trialDays: trialDays}
}

// workspaceForWrite decides which workspace owns a record being created. A
// scoped principal always writes into its own workspace. A super-admin may
// target any workspace explicitly; without a target its records fall back to
// the reserved super-admin workspace.
func workspaceForWrite(db *gorm.DB, scope tenant.Scope, explicit *uint) (uint, error) {
	if id, ok := scope.WorkspaceID(); ok {
		return id, nil
	}
	if !scope.Unrestricted() {
		return 0, tenant.ErrNoWorkspaceAssigned
	}
	if explicit != nil && *explicit > 0 {
		var ws models.Workspace
		if err := db.First(&ws, *explicit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrWorkspaceNotFound
			}
			return 0, err
		}
		return ws.ID, nil
	}
	var reserved models.Workspace
	if err := db.Where("slug = ?", models.SuperAdminWorkspaceSlug).First(&reserved).Error; err != nil {
		return 0, err
	}
	return reserved.ID, nil
}

type WorkspaceListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Status   string `form:"status"`
	Keyword  string `form:"keyword"`
}

type WorkspaceListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.Workspace `json:"items"`
}

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

type UpdateWorkspaceRequest struct {
	Name            *string `json:"name"`
	Status          *string `json:"status" binding:"omitempty,oneof=active suspended"`
	SubscriptionRef *string `json:"subscription_ref"`
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=admin manager accountant client viewer"`
}

// slugify derives a URL-safe slug from a workspace name.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "workspace"
	}
	return slug
}

// List returns workspaces. Only super-admins see all; a tenant principal only
// ever sees its own workspace.
func (s *WorkspaceService) List(p *tenant.Principal, req *WorkspaceListRequest) (*WorkspaceListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceWorkspaces, tenant.ActionView); err != nil {
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

	query := s.db.Model(&models.Workspace{})
	if id, ok := scope.WorkspaceID(); ok {
		query = query.Where("id = ?", id)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Keyword != "" {
		query = query.Where("name LIKE ? OR slug LIKE ?", "%"+req.Keyword+"%", "%"+req.Keyword+"%")
	}

	var total int64
	query.Count(&total)

	var workspaces []models.Workspace
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").
		Find(&workspaces).Error; err != nil {
		return nil, err
	}

	return &WorkspaceListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: workspaces}, nil
}

// GetByID returns one workspace within the caller's scope.
func (s *WorkspaceService) GetByID(p *tenant.Principal, id uint) (*models.Workspace, error) {
	if err := tenant.Require(p, tenant.ResourceWorkspaces, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	if wsID, ok := scope.WorkspaceID(); ok && wsID != id {
		return nil, ErrWorkspaceNotFound
	}

	var ws models.Workspace
	if err := s.db.First(&ws, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// Create provisions a new tenant on a trial. The creating user becomes an
// admin member.
func (s *WorkspaceService) Create(p *tenant.Principal, req *CreateWorkspaceRequest) (*models.Workspace, error) {
	if err := tenant.Require(p, tenant.ResourceWorkspaces, tenant.ActionCreate); err != nil {
		return nil, err
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}
	var count int64
	s.db.Model(&models.Workspace{}).Where("slug = ?", slug).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("workspace slug is already taken")
	}

	trialEnd := time.Now().AddDate(0, 0, s.trialDays)
	ws := models.Workspace{
		Name:        req.Name,
		Slug:        slug,
		Status:      models.WorkspaceStatusActive,
		TrialEndsAt: &trialEnd,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ws).Error; err != nil {
			return err
		}
		membership := models.WorkspaceMembership{
			UserID:      p.UserID,
			WorkspaceID: ws.ID,
			Role:        tenant.RoleAdmin,
			IsActive:    true,
			JoinedAt:    time.Now(),
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// Update edits workspace settings. Status and subscription changes are
// platform-level and reserved to super-admins.
func (s *WorkspaceService) Update(p *tenant.Principal, id uint, req *UpdateWorkspaceRequest) (*models.Workspace, error) {
	if err := tenant.Require(p, tenant.ResourceWorkspaces, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	ws, err := s.GetByID(p, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Status != nil {
		if !p.IsSuperAdmin {
			return nil, tenant.ErrPermissionDenied
		}
		updates["status"] = *req.Status
	}
	if req.SubscriptionRef != nil {
		if !p.IsSuperAdmin {
			return nil, tenant.ErrPermissionDenied
		}
		updates["subscription_ref"] = *req.SubscriptionRef
	}
	if len(updates) == 0 {
		return ws, nil
	}

	if err := s.db.Model(ws).Updates(updates).Error; err != nil {
		return nil, err
	}
	return ws, nil
}

// AddMember attaches a user to the workspace. Re-adding a previously
// deactivated member reactivates the membership.
func (s *WorkspaceService) AddMember(p *tenant.Principal, workspaceID uint, req *AddMemberRequest) (*models.WorkspaceMembership, error) {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionCreate); err != nil {
		return nil, err
	}
	ws, err := s.GetByID(p, workspaceID)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundCode("NOT_FOUND", "user not found")
		}
		return nil, err
	}

	var membership models.WorkspaceMembership
	err = s.db.Where("user_id = ? AND workspace_id = ?", req.UserID, ws.ID).First(&membership).Error
	switch {
	case err == nil:
		if err := s.db.Model(&membership).Updates(map[string]interface{}{
			"role":      req.Role,
			"is_active": true,
			"joined_at": time.Now(),
		}).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		membership = models.WorkspaceMembership{
			UserID:      req.UserID,
			WorkspaceID: ws.ID,
			Role:        req.Role,
			IsActive:    true,
			JoinedAt:    time.Now(),
		}
		if err := s.db.Create(&membership).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &membership, nil
}

// RemoveMember deactivates a membership. The row is kept as history; the
// resolver skips inactive memberships.
func (s *WorkspaceService) RemoveMember(p *tenant.Principal, workspaceID, userID uint) error {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionDelete); err != nil {
		return err
	}
	if _, err := s.GetByID(p, workspaceID); err != nil {
		return err
	}

	res := s.db.Model(&models.WorkspaceMembership{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewNotFoundCode("NOT_FOUND", "membership not found")
	}
	return nil
}

// ListMembers returns the memberships of a workspace with their users.
func (s *WorkspaceService) ListMembers(p *tenant.Principal, workspaceID uint) ([]models.WorkspaceMembership, error) {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionView); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(p, workspaceID); err != nil {
		return nil, err
	}

	var memberships []models.WorkspaceMembership
	if err := s.db.Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("joined_at DESC").Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListExpiringTrials returns active unsubscribed workspaces whose trial
// ends within the window. The resolver already locks lapsed trials out, so
// the scheduler only sends reminders; it never flips the status.
func (s *WorkspaceService) ListExpiringTrials(withinDays int) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	err := s.db.
		Where("status = ?", models.WorkspaceStatusActive).
		Where("subscription_ref = ''").
		Where("trial_ends_at IS NOT NULL").
		Where("trial_ends_at >= ? AND trial_ends_at < ?",
			startOfToday(), startOfToday().AddDate(0, 0, withinDays)).
		Find(&workspaces).Error
	return workspaces, err
}

func startOfToday() time.Time {
	return dayOf(time.Now())
}
