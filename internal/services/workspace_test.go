package services

import (
	"testing"
	"time"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
)

func superAdmin() *tenant.Principal {
	return &tenant.Principal{UserID: 100, Username: "root", Role: tenant.RoleAdmin, IsSuperAdmin: true}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Co", "acme-co"},
		{"  Alice Design Studio  ", "alice-design-studio"},
		{"Ümlauts & Friends!", "mlauts-friends"},
		{"---", "workspace"},
		{"snake_case_name", "snake-case-name"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestWorkspaceCreate_SuperAdminOnly(t *testing.T) {
	f := newTestFixture(t)
	svc := NewWorkspaceService(f.db, 14)

	// Tenant admins provision workspaces through signup, not here.
	if _, err := svc.Create(f.admin, &CreateWorkspaceRequest{Name: "Second"}); errCode(err) != "PERMISSION_DENIED" {
		t.Errorf("errCode = %q, expected PERMISSION_DENIED", errCode(err))
	}

	ws, err := svc.Create(superAdmin(), &CreateWorkspaceRequest{Name: "Second Co"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ws.Slug != "second-co" {
		t.Errorf("slug = %q, expected second-co", ws.Slug)
	}
	if ws.TrialEndsAt == nil {
		t.Error("new workspace should start on a trial")
	}

	// Slug collisions are rejected.
	if _, err := svc.Create(superAdmin(), &CreateWorkspaceRequest{Name: "Second Co"}); err == nil {
		t.Error("duplicate slug should be rejected")
	}
}

func TestWorkspaceList_TenantSeesOnlyOwn(t *testing.T) {
	f := newTestFixture(t)
	svc := NewWorkspaceService(f.db, 14)

	other := models.Workspace{Name: "Other", Slug: "other", Status: models.WorkspaceStatusActive}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}

	resp, err := svc.List(f.admin, &WorkspaceListRequest{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != f.workspace.ID {
		t.Errorf("tenant admin should only see its workspace, got %d rows", resp.Total)
	}

	all, err := svc.List(superAdmin(), &WorkspaceListRequest{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 2 {
		t.Errorf("super-admin should see all workspaces, got %d", all.Total)
	}
}

func TestWorkspaceUpdate_StatusReservedToSuperAdmin(t *testing.T) {
	f := newTestFixture(t)
	svc := NewWorkspaceService(f.db, 14)

	name := "Acme Renamed"
	if _, err := svc.Update(f.admin, f.workspace.ID, &UpdateWorkspaceRequest{Name: &name}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	suspended := models.WorkspaceStatusSuspended
	if _, err := svc.Update(f.admin, f.workspace.ID, &UpdateWorkspaceRequest{Status: &suspended}); errCode(err) != "PERMISSION_DENIED" {
		t.Errorf("tenant admin changing status: errCode = %q, expected PERMISSION_DENIED", errCode(err))
	}

	if _, err := svc.Update(superAdmin(), f.workspace.ID, &UpdateWorkspaceRequest{Status: &suspended}); err != nil {
		t.Fatalf("super-admin Update() error = %v", err)
	}
	var ws models.Workspace
	if err := f.db.First(&ws, f.workspace.ID).Error; err != nil {
		t.Fatal(err)
	}
	if ws.Status != models.WorkspaceStatusSuspended {
		t.Errorf("status = %q, expected suspended", ws.Status)
	}
	if ws.Name != "Acme Renamed" {
		t.Errorf("name = %q, expected Acme Renamed", ws.Name)
	}
}

func TestWorkspaceMembers_AddRemoveReactivate(t *testing.T) {
	f := newTestFixture(t)
	svc := NewWorkspaceService(f.db, 14)

	user := models.User{Username: "bob", Email: "bob@acme.test", Role: tenant.RoleViewer, IsActive: true, AuthType: "local"}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}

	m, err := svc.AddMember(f.admin, f.workspace.ID, &AddMemberRequest{UserID: user.ID, Role: tenant.RoleManager})
	if err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if m.Role != tenant.RoleManager || !m.IsActive {
		t.Errorf("membership = %+v", m)
	}

	members, err := svc.ListMembers(f.admin, f.workspace.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("members = %d, expected 1", len(members))
	}

	if err := svc.RemoveMember(f.admin, f.workspace.ID, user.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	members, _ = svc.ListMembers(f.admin, f.workspace.ID)
	if len(members) != 0 {
		t.Errorf("removed member still listed")
	}

	// Re-adding flips the old row back on instead of creating a second one.
	if _, err := svc.AddMember(f.admin, f.workspace.ID, &AddMemberRequest{UserID: user.ID, Role: tenant.RoleViewer}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	var count int64
	f.db.Model(&models.WorkspaceMembership{}).
		Where("user_id = ? AND workspace_id = ?", user.ID, f.workspace.ID).Count(&count)
	if count != 1 {
		t.Errorf("membership rows = %d, expected 1", count)
	}

	if err := svc.RemoveMember(f.admin, f.workspace.ID, 9999); errCode(err) != "NOT_FOUND" {
		t.Errorf("removing unknown member: errCode = %q, expected NOT_FOUND", errCode(err))
	}
}

func TestWorkspaceGet_OtherTenantIsNotFound(t *testing.T) {
	f := newTestFixture(t)
	svc := NewWorkspaceService(f.db, 14)

	other := models.Workspace{Name: "Other", Slug: "other", Status: models.WorkspaceStatusActive}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetByID(f.admin, other.ID); err != ErrWorkspaceNotFound {
		t.Errorf("GetByID() error = %v, expected ErrWorkspaceNotFound", err)
	}
}

func TestListExpiringTrials(t *testing.T) {
	f := newTestFixture(t)
	svc := NewWorkspaceService(f.db, 14)

	soon := time.Now().AddDate(0, 0, 2)
	far := time.Now().AddDate(0, 0, 30)
	passed := time.Now().AddDate(0, 0, -2)

	mk := func(slug string, ends *time.Time, subscription string) {
		ws := models.Workspace{
			Name: slug, Slug: slug,
			Status:          models.WorkspaceStatusActive,
			TrialEndsAt:     ends,
			SubscriptionRef: subscription,
		}
		if err := f.db.Create(&ws).Error; err != nil {
			t.Fatal(err)
		}
	}
	mk("ending-soon", &soon, "")
	mk("ending-later", &far, "")
	mk("already-ended", &passed, "")
	mk("subscribed", &soon, "sub_42")

	got, err := svc.ListExpiringTrials(7)
	if err != nil {
		t.Fatalf("ListExpiringTrials() error = %v", err)
	}
	if len(got) != 1 || got[0].Slug != "ending-soon" {
		names := make([]string, 0, len(got))
		for _, ws := range got {
			names = append(names, ws.Slug)
		}
		t.Errorf("expiring trials = %v, expected [ending-soon]", names)
	}
}
