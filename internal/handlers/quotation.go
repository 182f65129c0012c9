package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/metrics"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type QuotationHandler struct {
	quotationService *services.QuotationService
	notifyService    *services.NotificationService
}

func NewQuotationHandler(db *gorm.DB, notifySvc *services.NotificationService) *QuotationHandler {
	return &QuotationHandler{
		quotationService: services.NewQuotationService(db),
		notifyService:    notifySvc,
	}
}

// List returns paginated quotations.
// GET /api/quotations
func (h *QuotationHandler) List(c *gin.Context) {
	var req services.QuotationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.quotationService.List(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Get returns one quotation.
// GET /api/quotations/:id
func (h *QuotationHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid quotation id")
		return
	}

	quotation, err := h.quotationService.GetByID(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, quotation)
}

// Create creates a quotation.
// POST /api/quotations
func (h *QuotationHandler) Create(c *gin.Context) {
	var req services.CreateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quotation, err := h.quotationService.Create(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quotation)
}

// Update edits a quotation.
// PUT /api/quotations/:id
func (h *QuotationHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid quotation id")
		return
	}

	var req services.UpdateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quotation, err := h.quotationService.Update(principal(c), uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, quotation)
}

// Delete removes an unconverted quotation.
// DELETE /api/quotations/:id
func (h *QuotationHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid quotation id")
		return
	}

	if err := h.quotationService.Delete(principal(c), uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "quotation deleted"})
}

// Send marks the quotation sent and mails it to the client.
// POST /api/quotations/:id/send
func (h *QuotationHandler) Send(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid quotation id")
		return
	}

	quotation, err := h.quotationService.MarkSent(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.notifyService != nil && quotation.Client != nil && quotation.Client.Email != "" {
		h.notifyService.NotifyQuotationSent(quotation, quotation.Client.Email)
	}
	response.Success(c, quotation)
}

// Convert turns an accepted quotation into a draft invoice.
// POST /api/quotations/:id/convert
func (h *QuotationHandler) Convert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid quotation id")
		return
	}

	var req services.ConvertQuotationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	invoice, err := h.quotationService.ConvertToInvoice(principal(c), uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics.QuotationsConvertedCounter.Inc()
	response.Created(c, invoice)
}
