package services

import (
	"errors"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = response.NewNotFoundCode("NOT_FOUND", "conversation not found")
	ErrConversationClosed   = response.NewBadRequest("conversation is closed")
)

// ConversationService manages message threads between staff and clients.
type ConversationService struct {
	db       *gorm.DB
	resolver *tenant.Resolver
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db, resolver: tenant.NewResolver(db)}
}

type ConversationListRequest struct {
	Page     int  `form:"page" binding:"min=1"`
	PageSize int  `form:"page_size" binding:"min=1,max=100"`
	ClientID uint `form:"client_id"`
	Open     bool `form:"open"`
}

type ConversationListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.Conversation `json:"items"`
}

type CreateConversationRequest struct {
	ClientID    uint   `json:"client_id"`
	Subject     string `json:"subject" binding:"required"`
	Body        string `json:"body" binding:"required"`
	WorkspaceID *uint  `json:"workspace_id"`
}

type PostMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// List returns paginated threads. A client-role principal only sees its own.
func (s *ConversationService) List(p *tenant.Principal, req *ConversationListRequest) (*ConversationListResponse, error) {
	if err := tenant.Require(p, tenant.ResourceConversations, tenant.ActionView); err != nil {
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

	query := tenant.ScopedQuery(s.db.Model(&models.Conversation{}), scope, p)
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.Open {
		query = query.Where("is_closed = ?", false)
	}

	var total int64
	query.Count(&total)

	var conversations []models.Conversation
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("updated_at DESC").
		Find(&conversations).Error; err != nil {
		return nil, err
	}

	return &ConversationListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: conversations}, nil
}

func (s *ConversationService) findScoped(scope tenant.Scope, p *tenant.Principal, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := tenant.ScopedQuery(s.db.Where("id = ?", id), scope, p).First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conversation, nil
}

// Create opens a thread with its first message. A client-role principal can
// only open threads on its own client record.
func (s *ConversationService) Create(p *tenant.Principal, req *CreateConversationRequest) (*models.Conversation, error) {
	if err := tenant.Require(p, tenant.ResourceConversations, tenant.ActionCreate); err != nil {
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

	clientID := req.ClientID
	if p.IsClient() {
		clientID = *p.ClientID
	}
	if clientID == 0 {
		return nil, response.NewBadRequest("client_id is required")
	}
	if !tenant.CanAccessClientRow(p, clientID) {
		return nil, ErrClientNotFound
	}

	var client models.Client
	if err := s.db.Where("id = ? AND workspace_id = ?", clientID, wsID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	conversation := models.Conversation{
		WorkspaceID: wsID,
		ClientID:    clientID,
		Subject:     req.Subject,
		CreatedBy:   p.UserID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		message := models.ConversationMessage{
			ConversationID: conversation.ID,
			SenderID:       p.UserID,
			Body:           req.Body,
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// Messages returns the thread's messages oldest first.
func (s *ConversationService) Messages(p *tenant.Principal, id uint) ([]models.ConversationMessage, error) {
	if err := tenant.Require(p, tenant.ResourceConversations, tenant.ActionView); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	conversation, err := s.findScoped(scope, p, id)
	if err != nil {
		return nil, err
	}

	var messages []models.ConversationMessage
	if err := s.db.Where("conversation_id = ?", conversation.ID).
		Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage appends to an open thread.
func (s *ConversationService) PostMessage(p *tenant.Principal, id uint, req *PostMessageRequest) (*models.ConversationMessage, error) {
	if err := tenant.Require(p, tenant.ResourceConversations, tenant.ActionCreate); err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	conversation, err := s.findScoped(scope, p, id)
	if err != nil {
		return nil, err
	}
	if conversation.IsClosed {
		return nil, ErrConversationClosed
	}

	message := models.ConversationMessage{
		ConversationID: conversation.ID,
		SenderID:       p.UserID,
		Body:           req.Body,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		// Bump the thread so listings sort by latest activity.
		return tx.Model(conversation).Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// Close marks a thread closed. Staff only.
func (s *ConversationService) Close(p *tenant.Principal, id uint) error {
	if err := tenant.Require(p, tenant.ResourceConversations, tenant.ActionUpdate); err != nil {
		return err
	}
	scope, err := s.resolver.Resolve(p)
	if err != nil {
		return err
	}
	conversation, err := s.findScoped(scope, p, id)
	if err != nil {
		return err
	}
	return s.db.Model(conversation).Update("is_closed", true).Error
}
