package models

import (
	"time"

	"gorm.io/gorm"
)

// Quotation statuses.
const (
	QuotationStatusDraft    = "draft"
	QuotationStatusSent     = "sent"
	QuotationStatusAccepted = "accepted"
	QuotationStatusDeclined = "declined"
	QuotationStatusExpired  = "expired"
)

// Quotation is a priced offer that can be converted into an invoice once
// accepted. Totals follow the same math as invoices.
type Quotation struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	WorkspaceID     uint            `gorm:"index;not null" json:"workspace_id"`
	ClientID        uint            `gorm:"index;not null" json:"client_id"`
	Client          *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProjectID       *uint           `gorm:"index" json:"project_id"`
	QuotationNumber string          `gorm:"uniqueIndex;size:50;not null" json:"quotation_number"`
	IssueDate       time.Time       `json:"issue_date"`
	ValidUntil      *time.Time      `json:"valid_until"`
	Subtotal        float64         `gorm:"default:0" json:"subtotal"`
	TaxRate         float64         `gorm:"default:0" json:"tax_rate"` // percent
	TaxAmount       float64         `gorm:"default:0" json:"tax_amount"`
	TotalAmount     float64         `gorm:"default:0" json:"total_amount"`
	Status          string          `gorm:"size:20;default:draft;index" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	InvoiceID       *uint           `gorm:"index" json:"invoice_id"` // set once converted
	Items           []QuotationItem `gorm:"foreignKey:QuotationID" json:"items,omitempty"`
	CreatedBy       uint            `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Quotation) TableName() string { return "quotations" }

type QuotationItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	QuotationID uint    `gorm:"index;not null" json:"quotation_id"`
	Description string  `gorm:"size:500;not null" json:"description"`
	Quantity    float64 `gorm:"default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"default:0" json:"unit_price"`
	Amount      float64 `gorm:"default:0" json:"amount"` // quantity * unit_price
	SortOrder   int     `gorm:"default:0" json:"sort_order"`
}

func (QuotationItem) TableName() string { return "quotation_items" }
