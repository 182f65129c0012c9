package tenant

import (
	"errors"
	"fmt"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/gorm"
)

// Resolution failures, surfaced as 403 with a machine-readable code.
var (
	ErrNoWorkspaceAssigned = response.NewForbiddenCode("NO_WORKSPACE", "no workspace is assigned to this account")
	ErrWorkspaceInactive   = response.NewForbiddenCode("WORKSPACE_INACTIVE", "this workspace has been suspended")
)

// NewTrialExpiredError reports a lapsed trial, carrying the end date for
// client display.
func NewTrialExpiredError(endedAt time.Time) *response.AppError {
	return response.NewForbiddenCode("TRIAL_EXPIRED",
		fmt.Sprintf("workspace trial ended on %s", endedAt.Format("2006-01-02")))
}

// Scope is the workspace visibility of a request: unrestricted for
// super-admins, a single workspace for everyone else. The zero value is an
// unresolved scope whose predicate matches nothing (fail closed).
type Scope struct {
	unrestricted bool
	workspaceID  uint
	resolved     bool
}

// UnrestrictedScope matches every workspace. Only super-admin principals
// ever receive it.
func UnrestrictedScope() Scope {
	return Scope{unrestricted: true, resolved: true}
}

// WorkspaceScope restricts visibility to a single workspace.
func WorkspaceScope(id uint) Scope {
	return Scope{workspaceID: id, resolved: true}
}

// Unrestricted reports whether the scope matches all workspaces.
func (s Scope) Unrestricted() bool { return s.resolved && s.unrestricted }

// WorkspaceID returns the scoped workspace id. ok is false for unrestricted
// or unresolved scopes.
func (s Scope) WorkspaceID() (id uint, ok bool) {
	if !s.resolved || s.unrestricted {
		return 0, false
	}
	return s.workspaceID, true
}

// Resolver determines the effective workspace scope for a principal.
// Resolution is read-only with respect to the workspace; the only side
// effect is caching the result on the principal for the rest of the request.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the scope a principal may see. Order: super-admin is
// unrestricted; a workspace pinned on the user record wins; otherwise the
// most-recently-joined active membership in an active workspace. The
// resolved workspace must be active and inside its trial/subscription
// window.
func (r *Resolver) Resolve(p *Principal) (Scope, error) {
	if p.IsSuperAdmin {
		return UnrestrictedScope(), nil
	}
	if s, ok := p.CachedScope(); ok {
		return s, nil
	}

	var wsID uint
	if p.WorkspaceID != nil && *p.WorkspaceID > 0 {
		wsID = *p.WorkspaceID
	} else {
		id, err := r.newestActiveMembership(p.UserID)
		if err != nil {
			return Scope{}, err
		}
		wsID = id
	}

	var ws models.Workspace
	if err := r.db.First(&ws, wsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Scope{}, ErrNoWorkspaceAssigned
		}
		return Scope{}, err
	}

	if ws.Status != models.WorkspaceStatusActive {
		return Scope{}, ErrWorkspaceInactive
	}
	if ws.TrialEndsAt != nil && ws.SubscriptionRef == "" {
		if truncateToDay(time.Now()).After(truncateToDay(*ws.TrialEndsAt)) {
			return Scope{}, NewTrialExpiredError(*ws.TrialEndsAt)
		}
	}

	scope := WorkspaceScope(ws.ID)
	p.scope = &scope
	return scope, nil
}

// newestActiveMembership finds the workspace of the principal's
// most-recently-joined active membership in an active workspace.
func (r *Resolver) newestActiveMembership(userID uint) (uint, error) {
	var m models.WorkspaceMembership
	err := r.db.
		Joins("JOIN workspaces ON workspaces.id = workspace_memberships.workspace_id").
		Where("workspace_memberships.user_id = ? AND workspace_memberships.is_active = ?", userID, true).
		Where("workspaces.status = ?", models.WorkspaceStatusActive).
		Order("workspace_memberships.joined_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoWorkspaceAssigned
		}
		return 0, err
	}
	return m.WorkspaceID, nil
}

// truncateToDay strips the time-of-day component. All trial and due-date
// comparisons happen at day granularity.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
