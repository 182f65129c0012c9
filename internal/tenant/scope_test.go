package tenant

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Workspace{}, &models.WorkspaceMembership{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createWorkspace(t *testing.T, db *gorm.DB, slug, status string, trialEndsAt *time.Time, subscriptionRef string) *models.Workspace {
	t.Helper()
	ws := models.Workspace{
		Name:            slug,
		Slug:            slug,
		Status:          status,
		TrialEndsAt:     trialEndsAt,
		SubscriptionRef: subscriptionRef,
	}
	if err := db.Create(&ws).Error; err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return &ws
}

func TestResolve_SuperAdminUnrestricted(t *testing.T) {
	r := NewResolver(testDB(t))
	p := &Principal{UserID: 1, IsSuperAdmin: true}

	scope, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !scope.Unrestricted() {
		t.Error("super admin scope should be unrestricted")
	}
}

func TestResolve_PinnedWorkspace(t *testing.T) {
	db := testDB(t)
	ws := createWorkspace(t, db, "acme", models.WorkspaceStatusActive, nil, "sub_1")

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager, WorkspaceID: &ws.ID}

	scope, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	id, ok := scope.WorkspaceID()
	if !ok || id != ws.ID {
		t.Errorf("scope workspace = %d (ok=%v), expected %d", id, ok, ws.ID)
	}
}

func TestResolve_MembershipFallbackPicksNewest(t *testing.T) {
	db := testDB(t)
	older := createWorkspace(t, db, "older", models.WorkspaceStatusActive, nil, "sub_1")
	newer := createWorkspace(t, db, "newer", models.WorkspaceStatusActive, nil, "sub_2")

	memberships := []models.WorkspaceMembership{
		{UserID: 1, WorkspaceID: older.ID, Role: RoleManager, IsActive: true, JoinedAt: time.Now().Add(-48 * time.Hour)},
		{UserID: 1, WorkspaceID: newer.ID, Role: RoleViewer, IsActive: true, JoinedAt: time.Now().Add(-1 * time.Hour)},
	}
	if err := db.Create(&memberships).Error; err != nil {
		t.Fatalf("failed to create memberships: %v", err)
	}

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager}

	scope, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	id, _ := scope.WorkspaceID()
	if id != newer.ID {
		t.Errorf("resolved workspace = %d, expected newest membership %d", id, newer.ID)
	}
}

func TestResolve_InactiveMembershipIgnored(t *testing.T) {
	db := testDB(t)
	active := createWorkspace(t, db, "active-ws", models.WorkspaceStatusActive, nil, "sub_1")
	left := createWorkspace(t, db, "left-ws", models.WorkspaceStatusActive, nil, "sub_2")

	memberships := []models.WorkspaceMembership{
		{UserID: 1, WorkspaceID: active.ID, Role: RoleManager, IsActive: true, JoinedAt: time.Now().Add(-48 * time.Hour)},
		{UserID: 1, WorkspaceID: left.ID, Role: RoleManager, IsActive: false, JoinedAt: time.Now()},
	}
	if err := db.Create(&memberships).Error; err != nil {
		t.Fatalf("failed to create memberships: %v", err)
	}

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager}

	scope, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	id, _ := scope.WorkspaceID()
	if id != active.ID {
		t.Errorf("resolved workspace = %d, expected %d (inactive membership must be skipped)", id, active.ID)
	}
}

func TestResolve_NoWorkspaceAssigned(t *testing.T) {
	r := NewResolver(testDB(t))
	p := &Principal{UserID: 1, Role: RoleManager}

	_, err := r.Resolve(p)
	if !errors.Is(err, ErrNoWorkspaceAssigned) {
		t.Errorf("Resolve() = %v, expected ErrNoWorkspaceAssigned", err)
	}
}

func TestResolve_SuspendedWorkspace(t *testing.T) {
	db := testDB(t)
	ws := createWorkspace(t, db, "frozen", models.WorkspaceStatusSuspended, nil, "sub_1")

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager, WorkspaceID: &ws.ID}

	_, err := r.Resolve(p)
	if !errors.Is(err, ErrWorkspaceInactive) {
		t.Errorf("Resolve() = %v, expected ErrWorkspaceInactive", err)
	}
}

func TestResolve_TrialExpired(t *testing.T) {
	db := testDB(t)
	ended := time.Now().AddDate(0, 0, -3)
	ws := createWorkspace(t, db, "lapsed", models.WorkspaceStatusActive, &ended, "")

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager, WorkspaceID: &ws.ID}

	_, err := r.Resolve(p)
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.ErrCode != "TRIAL_EXPIRED" {
		t.Fatalf("Resolve() = %v, expected TRIAL_EXPIRED", err)
	}
	if appErr.Message == "" {
		t.Error("trial expiry message should carry the end date")
	}
}

func TestResolve_TrialEndsTodayStillValid(t *testing.T) {
	// Day granularity: the trial covers the whole of its last day.
	db := testDB(t)
	today := time.Now()
	ws := createWorkspace(t, db, "lastday", models.WorkspaceStatusActive, &today, "")

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager, WorkspaceID: &ws.ID}

	if _, err := r.Resolve(p); err != nil {
		t.Errorf("Resolve() error = %v, trial ending today should still resolve", err)
	}
}

func TestResolve_SubscriptionBypassesTrial(t *testing.T) {
	db := testDB(t)
	ended := time.Now().AddDate(0, 0, -30)
	ws := createWorkspace(t, db, "paying", models.WorkspaceStatusActive, &ended, "sub_42")

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager, WorkspaceID: &ws.ID}

	if _, err := r.Resolve(p); err != nil {
		t.Errorf("Resolve() error = %v, subscribed workspace should resolve past trial end", err)
	}
}

func TestResolve_CachesOnPrincipal(t *testing.T) {
	db := testDB(t)
	ws := createWorkspace(t, db, "cached", models.WorkspaceStatusActive, nil, "sub_1")
	if err := db.Create(&models.WorkspaceMembership{
		UserID: 1, WorkspaceID: ws.ID, Role: RoleManager, IsActive: true, JoinedAt: time.Now(),
	}).Error; err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}

	r := NewResolver(db)
	p := &Principal{UserID: 1, Role: RoleManager}

	first, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := p.CachedScope(); !ok {
		t.Fatal("scope should be cached on the principal after resolution")
	}

	// Deactivate the membership; the cached scope must still be returned for
	// the remainder of the request.
	if err := db.Model(&models.WorkspaceMembership{}).Where("user_id = ?", 1).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to update membership: %v", err)
	}

	second, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if first != second {
		t.Error("resolution should be idempotent within a request")
	}
}
