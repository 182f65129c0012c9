package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type ClientHandler struct {
	clientService *services.ClientService
}

func NewClientHandler(db *gorm.DB) *ClientHandler {
	return &ClientHandler{clientService: services.NewClientService(db)}
}

// List returns paginated clients.
// GET /api/clients
func (h *ClientHandler) List(c *gin.Context) {
	var req services.ClientListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.clientService.List(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Get returns one client.
// GET /api/clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid client id")
		return
	}

	client, err := h.clientService.GetByID(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, client)
}

// Create creates a client.
// POST /api/clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req services.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	client, err := h.clientService.Create(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, client)
}

// Update edits a client.
// PUT /api/clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid client id")
		return
	}

	var req services.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	client, err := h.clientService.Update(principal(c), uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, client)
}

// Delete removes a client without documents.
// DELETE /api/clients/:id
func (h *ClientHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid client id")
		return
	}

	if err := h.clientService.Delete(principal(c), uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "client deleted"})
}
