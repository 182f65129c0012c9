package services

import (
	"errors"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/internal/utils"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = response.NewNotFoundCode("NOT_FOUND", "user not found")
	ErrUsernameTaken      = response.NewConflict("username already exists")
	ErrCannotDropLastRole = response.NewBadRequest("cannot change the role of the last workspace admin")
)

// UserService manages workspace staff and client logins. Users are attached
// to a workspace through memberships; the caller only ever sees members of
// its own workspace unless it is the platform operator.
type UserService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, resolver: tenant.NewResolver(db)}
}

type UserListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Keyword  string `form:"keyword"`
	Role     string `form:"role"`
}

type UserListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.User `json:"items"`
}

type CreateUserRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Password    string `json:"password" binding:"required,min=6"`
	Email       string `json:"email" binding:"omitempty,email"`
	Nickname    string `json:"nickname"`
	Role        string `json:"role" binding:"required,oneof=admin manager accountant client viewer"`
	ClientID    *uint  `json:"client_id"`
	WorkspaceID *uint  `json:"workspace_id"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Nickname *string `json:"nickname"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin manager accountant client viewer"`
	ClientID *uint   `json:"client_id"`
	IsActive *bool   `json:"is_active"`
}

func (s *UserService) membershipQuery(wsID uint) *gorm.DB {
	return s.db.Model(&models.User{}).
		Joins("JOIN workspace_memberships ON workspace_memberships.user_id = users.id").
		Where("workspace_memberships.workspace_id = ? AND workspace_memberships.is_active = ?", wsID, true)
}

// List returns the caller's workspace members. The platform operator sees
// every account.
func (s *UserService) List(p *tenant.Principal, req *UserListRequest) (*UserListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionView); err != nil {
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

	var query *gorm.DB
	if scope.Unrestricted() {
		query = s.db.Model(&models.User{})
	} else {
		wsID, _ := scope.WorkspaceID()
		query = s.membershipQuery(wsID)
	}

	if req.Keyword != "" {
		like := "%" + req.Keyword + "%"
		query = query.Where("users.username LIKE ? OR users.nickname LIKE ? OR users.email LIKE ?", like, like, like)
	}
	if req.Role != "" {
		query = query.Where("users.role = ?", req.Role)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("users.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, err
	}

	return &UserListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: users}, nil
}

func (s *UserService) findInScope(scope tenant.Scope, id uint) (*models.User, error) {
	var user models.User
	var query *gorm.DB
	if scope.Unrestricted() {
		query = s.db.Where("id = ?", id)
	} else {
		wsID, _ := scope.WorkspaceID()
		query = s.membershipQuery(wsID).Where("users.id = ?", id)
	}
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetByID(p *tenant.Principal, id uint) (*models.User, error) {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.findInScope(scope, id)
}

// Create adds a login to the caller's workspace together with its
// membership. A client-role user must point at a client record of the same
// workspace.
func (s *UserService) Create(p *tenant.Principal, req *CreateUserRequest) (*models.User, error) {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionCreate); err != nil {
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

	var count int64
	s.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	if req.Role == tenant.RoleClient {
		if req.ClientID == nil {
			return nil, response.NewBadRequest("client_id is required for client users")
		}
		var client models.Client
		if err := s.db.Where("id = ? AND workspace_id = ?", *req.ClientID, wsID).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrClientNotFound
			}
			return nil, err
		}
	} else {
		req.ClientID = nil
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:    req.Username,
		Password:    hashed,
		Email:       req.Email,
		Nickname:    req.Nickname,
		Role:        req.Role,
		AuthType:    "local",
		IsActive:    true,
		WorkspaceID: &wsID,
		ClientID:    req.ClientID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		membership := models.WorkspaceMembership{
			UserID:      user.ID,
			WorkspaceID: wsID,
			Role:        req.Role,
			IsActive:    true,
			JoinedAt:    time.Now(),
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update edits profile fields, the role or the active flag. Demoting the
// workspace's last active admin is rejected.
func (s *UserService) Update(p *tenant.Principal, id uint, req *UpdateUserRequest) (*models.User, error) {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionUpdate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	user, err := s.findInScope(scope, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Nickname != nil {
		updates["nickname"] = *req.Nickname
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	roleChanged := req.Role != nil && *req.Role != user.Role
	demoted := (roleChanged && user.Role == tenant.RoleAdmin) ||
		(req.IsActive != nil && !*req.IsActive && user.Role == tenant.RoleAdmin)
	if demoted && user.WorkspaceID != nil {
		var admins int64
		s.db.Model(&models.WorkspaceMembership{}).
			Where("workspace_id = ? AND role = ? AND is_active = ? AND user_id <> ?",
				*user.WorkspaceID, tenant.RoleAdmin, true, user.ID).
			Count(&admins)
		if admins == 0 {
			return nil, ErrCannotDropLastRole
		}
	}

	if roleChanged {
		updates["role"] = *req.Role
		if *req.Role == tenant.RoleClient {
			if req.ClientID == nil {
				return nil, response.NewBadRequest("client_id is required for client users")
			}
		} else {
			updates["client_id"] = nil
		}
	}
	if req.ClientID != nil {
		wsID := uint(0)
		if user.WorkspaceID != nil {
			wsID = *user.WorkspaceID
		}
		var client models.Client
		if err := s.db.Where("id = ? AND workspace_id = ?", *req.ClientID, wsID).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrClientNotFound
			}
			return nil, err
		}
		updates["client_id"] = *req.ClientID
	}

	if len(updates) == 0 {
		return user, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return err
		}
		if roleChanged && user.WorkspaceID != nil {
			return tx.Model(&models.WorkspaceMembership{}).
				Where("user_id = ? AND workspace_id = ?", user.ID, *user.WorkspaceID).
				Update("role", *req.Role).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.findInScope(scope, id)
}

// Deactivate disables a login without deleting its history.
func (s *UserService) Deactivate(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceUsers, tenant.ActionDelete); err != nil {
		return err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return err
	}
	user, err := s.findInScope(scope, id)
	if err != nil {
		return err
	}
	if user.ID == p.UserID {
		return response.NewBadRequest("cannot deactivate your own account")
	}
	if user.Role == tenant.RoleAdmin && user.WorkspaceID != nil {
		var admins int64
		s.db.Model(&models.WorkspaceMembership{}).
			Where("workspace_id = ? AND role = ? AND is_active = ? AND user_id <> ?",
				*user.WorkspaceID, tenant.RoleAdmin, true, user.ID).
			Count(&admins)
		if admins == 0 {
			return ErrCannotDropLastRole
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.WorkspaceMembership{}).
			Where("user_id = ?", user.ID).
			Update("is_active", false).Error
	})
}
