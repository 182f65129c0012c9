package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type FileHandler struct {
	fileService *services.FileService
}

func NewFileHandler(db *gorm.DB) *FileHandler {
	return &FileHandler{fileService: services.NewFileService(db)}
}

// List returns paginated attachments.
// GET /api/files
func (h *FileHandler) List(c *gin.Context) {
	var req services.FileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.fileService.List(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Register records an uploaded file's metadata and mints its storage key.
// POST /api/files
func (h *FileHandler) Register(c *gin.Context) {
	var req services.RegisterFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	file, err := h.fileService.Register(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// Get returns one attachment.
// GET /api/files/:id
func (h *FileHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}

	file, err := h.fileService.GetByID(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, file)
}

// Delete removes an attachment row.
// DELETE /api/files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}

	if err := h.fileService.Delete(principal(c), uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "file deleted"})
}
