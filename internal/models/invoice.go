package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice statuses. cancelled is terminal; every other status is derived
// from (total_amount, paid_amount, due_date, today) by the status engine.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusPartial   = "partial"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice carries the financial state the ledger maintains: paid_amount is
// the running sum of payments and never exceeds total_amount.
type Invoice struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	WorkspaceID   uint           `gorm:"index;not null" json:"workspace_id"`
	ClientID      uint           `gorm:"index;not null" json:"client_id"`
	Client        *Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProjectID     *uint          `gorm:"index" json:"project_id"`
	InvoiceNumber string         `gorm:"uniqueIndex;size:50;not null" json:"invoice_number"`
	IssueDate     time.Time      `json:"issue_date"`
	DueDate       time.Time      `gorm:"index;not null" json:"due_date"`
	Subtotal      float64        `gorm:"default:0" json:"subtotal"`
	TaxRate       float64        `gorm:"default:0" json:"tax_rate"` // percent
	TaxAmount     float64        `gorm:"default:0" json:"tax_amount"`
	TotalAmount   float64        `gorm:"default:0" json:"total_amount"`
	PaidAmount    float64        `gorm:"default:0" json:"paid_amount"`
	Status        string         `gorm:"size:20;default:draft;index" json:"status"`
	Notes         string         `gorm:"type:text" json:"notes"`
	Items         []InvoiceItem  `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	CreatedBy     uint           `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Invoice) TableName() string { return "invoices" }

// OutstandingAmount is total minus paid; the ledger validates payments
// against it.
func (i *Invoice) OutstandingAmount() float64 {
	return i.TotalAmount - i.PaidAmount
}

// InvoiceItem is a line item. Subtotal is recomputed from items whenever
// they are supplied.
type InvoiceItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	InvoiceID   uint    `gorm:"index;not null" json:"invoice_id"`
	Description string  `gorm:"size:500;not null" json:"description"`
	Quantity    float64 `gorm:"default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"default:0" json:"unit_price"`
	Amount      float64 `gorm:"default:0" json:"amount"` // quantity * unit_price
	SortOrder   int     `gorm:"default:0" json:"sort_order"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// Payment is append-only: there is no update or delete path. Payments drive
// the invoice's paid_amount.
type Payment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID     uint      `gorm:"index;not null" json:"workspace_id"`
	InvoiceID       uint      `gorm:"index;not null" json:"invoice_id"`
	Amount          float64   `gorm:"not null" json:"amount"`
	Method          string    `gorm:"size:50" json:"method"` // bank_transfer, cash, card, other
	PaymentDate     time.Time `gorm:"index" json:"payment_date"`
	ReferenceNumber string    `gorm:"size:100" json:"reference_number"`
	Notes           string    `gorm:"size:500" json:"notes"`
	RecordedBy      uint      `json:"recorded_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
