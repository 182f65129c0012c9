package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/metrics"
	"github.com/kanzhen/bizmanage/internal/services"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

type InvoiceHandler struct {
	invoiceService *services.InvoiceService
	notifyService  *services.NotificationService
}

func NewInvoiceHandler(db *gorm.DB, notifySvc *services.NotificationService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: services.NewInvoiceService(db),
		notifyService:  notifySvc,
	}
}

// List returns paginated invoices.
// GET /api/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var req services.InvoiceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.invoiceService.List(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Get returns one invoice.
// GET /api/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}

	invoice, err := h.invoiceService.GetByID(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, invoice)
}

// Create creates an invoice.
// POST /api/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req services.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.Create(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics.InvoicesIssuedCounter.Inc()
	response.Created(c, invoice)
}

// Update edits an invoice and recomputes its totals and status.
// PUT /api/invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}

	var req services.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.Update(principal(c), uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, invoice)
}

// Delete removes an invoice without payments.
// DELETE /api/invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}

	if err := h.invoiceService.Delete(principal(c), uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "invoice deleted"})
}

// Send marks the invoice sent and mails it to the client.
// POST /api/invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}
	p := principal(c)

	invoice, err := h.invoiceService.MarkSent(p, uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.notifyService != nil {
		if full, err := h.invoiceService.GetByID(p, invoice.ID); err == nil &&
			full.Client != nil && full.Client.Email != "" {
			h.notifyService.NotifyInvoiceSent(full, full.Client.Email)
		}
	}
	response.Success(c, invoice)
}

// Cancel puts the invoice into its terminal state.
// POST /api/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}

	invoice, err := h.invoiceService.Cancel(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, invoice)
}

// RecordPayment appends a payment to the invoice ledger.
// POST /api/invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}
	p := principal(c)

	var req services.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.RecordPayment(p, uint(id), &req)
	if err != nil {
		if err == services.ErrPaymentConflict {
			metrics.PaymentConflictCounter.Inc()
		}
		response.Error(c, err)
		return
	}
	metrics.RecordPayment(req.Amount)

	if h.notifyService != nil {
		payments, perr := h.invoiceService.ListPayments(p, invoice.ID)
		if full, ferr := h.invoiceService.GetByID(p, invoice.ID); ferr == nil && perr == nil &&
			len(payments) > 0 && full.Client != nil && full.Client.Email != "" {
			h.notifyService.NotifyPaymentReceived(full, &payments[len(payments)-1], full.Client.Email)
		}
	}
	response.Success(c, invoice)
}

// ListPayments returns the invoice's payment history.
// GET /api/invoices/:id/payments
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}

	payments, err := h.invoiceService.ListPayments(principal(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, payments)
}

// ListAllPayments returns the workspace-wide payment history.
// GET /api/payments
func (h *InvoiceHandler) ListAllPayments(c *gin.Context) {
	var req services.PaymentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.invoiceService.ListAllPayments(principal(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
