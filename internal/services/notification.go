package services

import (
	"context"
	"fmt"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService turns queued notification tasks into outbound mail.
// Enqueue helpers are called from the handlers; Process runs on the worker
// (or in-process when Redis is disabled).
type NotificationService struct {
	db    *gorm.DB
	email *EmailService
}

func NewNotificationService(db *gorm.DB, email *EmailService) *NotificationService {
	return &NotificationService{db: db, email: email}
}

func (s *NotificationService) enqueue(task *NotificationTask) {
	queue := GetTaskQueue()
	if queue == nil {
		return
	}
	if err := queue.Enqueue(task); err != nil {
		logger.Infof("[Notification] Failed to enqueue %s: %v", task.Kind, err)
	}
}

// NotifyInvoiceSent queues mail to the invoice's client.
func (s *NotificationService) NotifyInvoiceSent(invoice *models.Invoice, recipient string) {
	s.enqueue(&NotificationTask{
		Kind:        NotificationInvoiceSent,
		WorkspaceID: invoice.WorkspaceID,
		InvoiceID:   &invoice.ID,
		Recipient:   recipient,
		Amount:      invoice.TotalAmount,
	})
}

// NotifyQuotationSent queues mail to the quotation's client.
func (s *NotificationService) NotifyQuotationSent(quotation *models.Quotation, recipient string) {
	s.enqueue(&NotificationTask{
		Kind:        NotificationQuotationSent,
		WorkspaceID: quotation.WorkspaceID,
		QuotationID: &quotation.ID,
		Recipient:   recipient,
		Amount:      quotation.TotalAmount,
	})
}

// NotifyPaymentReceived queues a receipt confirmation.
func (s *NotificationService) NotifyPaymentReceived(invoice *models.Invoice, payment *models.Payment, recipient string) {
	s.enqueue(&NotificationTask{
		Kind:        NotificationPaymentReceived,
		WorkspaceID: invoice.WorkspaceID,
		InvoiceID:   &invoice.ID,
		PaymentID:   &payment.ID,
		Recipient:   recipient,
		Amount:      payment.Amount,
	})
}

// NotifyInvoiceOverdue queues an overdue reminder. Used by the scheduler.
func (s *NotificationService) NotifyInvoiceOverdue(invoice *models.Invoice, recipient string) {
	s.enqueue(&NotificationTask{
		Kind:        NotificationInvoiceOverdue,
		WorkspaceID: invoice.WorkspaceID,
		InvoiceID:   &invoice.ID,
		Recipient:   recipient,
		Amount:      invoice.OutstandingAmount(),
	})
}

// NotifyTrialExpiring queues a reminder to a workspace admin.
func (s *NotificationService) NotifyTrialExpiring(workspaceID uint, recipient string) {
	s.enqueue(&NotificationTask{
		Kind:        NotificationTrialExpiring,
		WorkspaceID: workspaceID,
		Recipient:   recipient,
	})
}

// Process delivers one queued notification. Unknown kinds are dropped, not
// retried.
func (s *NotificationService) Process(ctx context.Context, task *NotificationTask) error {
	if task.Recipient == "" {
		return nil
	}

	switch task.Kind {
	case NotificationInvoiceSent, NotificationInvoiceOverdue, NotificationPaymentReceived:
		return s.processInvoiceMail(task)
	case NotificationQuotationSent:
		return s.processQuotationMail(task)
	case NotificationTrialExpiring:
		return s.processTrialMail(task)
	default:
		logger.Infof("[Notification] Dropping task with unknown kind %q", task.Kind)
		return nil
	}
}

func (s *NotificationService) processInvoiceMail(task *NotificationTask) error {
	if task.InvoiceID == nil {
		return nil
	}
	var invoice models.Invoice
	if err := s.db.Preload("Client").First(&invoice, *task.InvoiceID).Error; err != nil {
		return err
	}

	clientName := ""
	if invoice.Client != nil {
		clientName = invoice.Client.Name
	}

	var title, subject, footer string
	switch task.Kind {
	case NotificationInvoiceSent:
		title = "New Invoice"
		subject = fmt.Sprintf("Invoice %s", invoice.InvoiceNumber)
		footer = "Please settle the invoice by its due date."
	case NotificationInvoiceOverdue:
		title = "Invoice Overdue"
		subject = fmt.Sprintf("Invoice %s is overdue", invoice.InvoiceNumber)
		footer = "This invoice is past its due date. Please arrange payment."
	case NotificationPaymentReceived:
		title = "Payment Received"
		subject = fmt.Sprintf("Payment received for invoice %s", invoice.InvoiceNumber)
		footer = "Thank you for your payment."
	}

	rows := [][2]string{
		{"Invoice", invoice.InvoiceNumber},
		{"Client", clientName},
		{"Due Date", invoice.DueDate.Format("2006-01-02")},
		{"Total", fmt.Sprintf("%.2f", invoice.TotalAmount)},
		{"Outstanding", fmt.Sprintf("%.2f", invoice.OutstandingAmount())},
	}
	if task.Kind == NotificationPaymentReceived {
		rows = append(rows, [2]string{"Payment Amount", fmt.Sprintf("%.2f", task.Amount)})
	}

	body := BuildDocumentEmail(title, rows, footer)
	return s.email.Send([]string{task.Recipient}, subject, body)
}

func (s *NotificationService) processQuotationMail(task *NotificationTask) error {
	if task.QuotationID == nil {
		return nil
	}
	var quotation models.Quotation
	if err := s.db.Preload("Client").First(&quotation, *task.QuotationID).Error; err != nil {
		return err
	}

	clientName := ""
	if quotation.Client != nil {
		clientName = quotation.Client.Name
	}
	validUntil := ""
	if quotation.ValidUntil != nil {
		validUntil = quotation.ValidUntil.Format("2006-01-02")
	}

	rows := [][2]string{
		{"Quotation", quotation.QuotationNumber},
		{"Client", clientName},
		{"Valid Until", validUntil},
		{"Total", fmt.Sprintf("%.2f", quotation.TotalAmount)},
	}

	body := BuildDocumentEmail("New Quotation", rows, "We look forward to your confirmation.")
	subject := fmt.Sprintf("Quotation %s", quotation.QuotationNumber)
	return s.email.Send([]string{task.Recipient}, subject, body)
}

func (s *NotificationService) processTrialMail(task *NotificationTask) error {
	var ws models.Workspace
	if err := s.db.First(&ws, task.WorkspaceID).Error; err != nil {
		return err
	}

	endsAt := ""
	if ws.TrialEndsAt != nil {
		endsAt = ws.TrialEndsAt.Format("2006-01-02")
	}
	rows := [][2]string{
		{"Workspace", ws.Name},
		{"Trial Ends", endsAt},
	}
	body := BuildDocumentEmail("Trial Ending Soon", rows,
		"Add a subscription to keep access after the trial ends.")
	return s.email.Send([]string{task.Recipient}, fmt.Sprintf("Your %s trial is ending", ws.Name), body)
}
