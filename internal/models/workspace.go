package models

import (
	"time"

	"gorm.io/gorm"
)

// Workspace statuses.
const (
	WorkspaceStatusActive    = "active"
	WorkspaceStatusSuspended = "suspended"
)

// SuperAdminWorkspaceSlug is the reserved workspace that owns records created
// by super-admin principals outside any tenant.
const SuperAdminWorkspaceSlug = "super-admin"

// Workspace is the tenant boundary. Every tenant-scoped row carries a
// workspace_id pointing here. A workspace is never hard-deleted while it
// owns data.
type Workspace struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:200;not null" json:"name"`
	Slug            string         `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Status          string         `gorm:"size:20;default:active;index" json:"status"` // active, suspended
	TrialEndsAt     *time.Time     `json:"trial_ends_at"`
	SubscriptionRef string         `gorm:"size:100" json:"subscription_ref"` // external billing reference; empty while on trial
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Workspace) TableName() string { return "workspaces" }

// WorkspaceMembership links a user to a workspace with a role. A user's
// effective workspace is the most-recently-joined active membership unless a
// workspace is pinned on the user record.
type WorkspaceMembership struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index:idx_membership_user_ws,unique;not null" json:"user_id"`
	WorkspaceID uint      `gorm:"index:idx_membership_user_ws,unique;not null" json:"workspace_id"`
	Role        string    `gorm:"size:50;default:viewer" json:"role"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	JoinedAt    time.Time `gorm:"index;not null" json:"joined_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (WorkspaceMembership) TableName() string { return "workspace_memberships" }
