package models

import (
	"time"

	"gorm.io/gorm"
)

// FileAttachment is the metadata row for an uploaded document (upload and
// storage are handled outside this service). It exists here so the tenant
// predicate covers file listings like any other scoped table.
type FileAttachment struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	WorkspaceID uint           `gorm:"index;not null" json:"workspace_id"`
	ClientID    *uint          `gorm:"index" json:"client_id"`
	ProjectID   *uint          `gorm:"index" json:"project_id"`
	FileName    string         `gorm:"size:255;not null" json:"file_name"`
	StorageKey  string         `gorm:"size:500;not null" json:"-"`
	ContentType string         `gorm:"size:100" json:"content_type"`
	SizeBytes   int64          `gorm:"default:0" json:"size_bytes"`
	UploadedBy  uint           `json:"uploaded_by"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (FileAttachment) TableName() string { return "file_attachments" }

// Conversation is a message thread between staff and a client, scoped to a
// workspace and a client record.
type Conversation struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	WorkspaceID uint           `gorm:"index;not null" json:"workspace_id"`
	ClientID    uint           `gorm:"index;not null" json:"client_id"`
	Subject     string         `gorm:"size:255;not null" json:"subject"`
	IsClosed    bool           `gorm:"default:false" json:"is_closed"`
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }

type ConversationMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	SenderID       uint      `gorm:"not null" json:"sender_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ConversationMessage) TableName() string { return "conversation_messages" }
