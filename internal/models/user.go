package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a principal. Role is the workspace-level role; client-role
// users additionally carry the client record they are narrowed to.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password     string         `gorm:"size:255" json:"-"` // Hashed password, empty for LDAP users
	Email        string         `gorm:"size:255" json:"email"`
	Nickname     string         `gorm:"size:100" json:"nickname"`
	Avatar       string         `gorm:"size:500" json:"avatar"`
	Role         string         `gorm:"size:50;default:viewer" json:"role"`     // admin, manager, accountant, client, viewer
	AuthType     string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	IsSuperAdmin bool           `gorm:"default:false" json:"is_super_admin"`
	WorkspaceID  *uint          `gorm:"index" json:"workspace_id"` // pinned workspace; nil falls back to memberships
	ClientID     *uint          `gorm:"index" json:"client_id"`    // legacy narrowing for client-role users
	LastLogin    *time.Time     `json:"last_login"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }
