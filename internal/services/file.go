package services

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var ErrFileNotFound = response.NewNotFoundCode("NOT_FOUND", "file not found")

// FileService manages attachment metadata. The bytes themselves live in
// whatever store the storage key points at.
type FileService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewFileService(db *gorm.DB) *FileService {
	return &FileService{db: db, resolver: tenant.NewResolver(db)}
}

type FileListRequest struct {
	Page      int   `form:"page" binding:"min=1"`
	PageSize  int   `form:"page_size" binding:"min=1,max=100"`
	ClientID  uint  `form:"client_id"`
	ProjectID uint  `form:"project_id"`
}

type FileListResponse struct {
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Items    []models.FileAttachment `json:"items"`
}

type RegisterFileRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ClientID    *uint  `json:"client_id"`
	ProjectID   *uint  `json:"project_id"`
	WorkspaceID *uint  `json:"workspace_id"`
}

// List returns paginated attachments. Client-role principals only see files
// attached to their own client record.
func (s *FileService) List(p *tenant.Principal, req *FileListRequest) (*FileListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceFiles, tenant.ActionView); err != nil {
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

	query := tenant.ScopedQuery(s.db.Model(&models.FileAttachment{}), scope, p)
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.ProjectID > 0 {
		query = query.Where("project_id = ?", req.ProjectID)
	}

	var total int64
	query.Count(&total)

	var files []models.FileAttachment
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").
		Find(&files).Error; err != nil {
		return nil, err
	}

	return &FileListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: files}, nil
}

// Register records an uploaded file and mints its storage key.
func (s *FileService) Register(p *tenant.Principal, req *RegisterFileRequest) (*models.FileAttachment, error) {
	if err := tenant.Require(p, tenant.ResourceFiles, tenant.ActionCreate); err != nil {
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

	ext := strings.ToLower(path.Ext(req.FileName))
	file := models.FileAttachment{
		WorkspaceID: wsID,
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		FileName:    req.FileName,
		StorageKey:  fmt.Sprintf("ws-%d/%s%s", wsID, uuid.New().String(), ext),
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		UploadedBy:  p.UserID,
	}
	if err := s.db.Create(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// GetByID returns one attachment in the caller's scope.
func (s *FileService) GetByID(p *tenant.Principal, id uint) (*models.FileAttachment, error) {
	if err := tenant.Require(p, tenant.ResourceFiles, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	var file models.FileAttachment
	if err := tenant.ScopedQuery(s.db.Where("id = ?", id), scope, p).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return &file, nil
}

// Delete removes an attachment row.
func (s *FileService) Delete(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceFiles, tenant.ActionDelete); err != nil {
		return err
	}
	file, err := s.GetByID(p, id)
	if err != nil {
		return err
	}
	return s.db.Delete(file).Error
}
