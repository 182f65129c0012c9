package models

import (
	"time"

	"gorm.io/gorm"
)

// Client is a customer record within a workspace.
type Client struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	WorkspaceID uint           `gorm:"index;not null" json:"workspace_id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	CompanyName string         `gorm:"size:200" json:"company_name"`
	Email       string         `gorm:"size:255" json:"email"`
	Phone       string         `gorm:"size:50" json:"phone"`
	Address     string         `gorm:"size:500" json:"address"`
	City        string         `gorm:"size:100" json:"city"`
	Country     string         `gorm:"size:100" json:"country"`
	TaxNumber   string         `gorm:"size:100" json:"tax_number"`
	Notes       string         `gorm:"type:text" json:"notes"`
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Client) TableName() string { return "clients" }
