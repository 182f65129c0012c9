package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type ConversationHandler struct {
	conversationService *services.ConversationService
}

func NewConversationHandler(db *gorm.DB) *ConversationHandler {
	return &ConversationHandler{
		conversationService: services.NewConversationService(db),
	}
}

// List returns paginated conversation threads.
// GET /api/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	var req services.ConversationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.conversationService.List(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Create opens a thread with its first message.
// POST /api/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req services.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	conversation, err := h.conversationService.Create(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, conversation)
}

// Messages returns the thread's messages oldest first.
// GET /api/conversations/:id/messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	messages, err := h.conversationService.Messages(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, messages)
}

// PostMessage appends to an open thread.
// POST /api/conversations/:id/messages
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	var req services.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	message, err := h.conversationService.PostMessage(principal(c), uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// Close marks a thread closed.
// POST /api/conversations/:id/close
func (h *ConversationHandler) Close(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	if err := h.conversationService.Close(principal(c), uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "conversation closed"})
}
