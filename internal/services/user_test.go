package services

import (
	"testing"

	"github.com/kanzhen/bizmanage/internal/models"
	"github.com/kanzhen/bizmanage/internal/tenant"
)

func (f *testFixture) createUser(t *testing.T, username, role string, clientID *uint) *models.User {
	t.Helper()

	svc := NewUserService(f.db)
	user, err := svc.Create(f.admin, &CreateUserRequest{
		Username: username,
		Password: "secret123",
		Email:    username + "@acme.test",
		Role:     role,
		ClientID: clientID,
	})
	if err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}

func TestUserCreate_AddsMembership(t *testing.T) {
	f := newTestFixture(t)

	user := f.createUser(t, "bob", tenant.RoleManager, nil)

	if user.WorkspaceID == nil || *user.WorkspaceID != f.workspace.ID {
		t.Error("user should be pinned to the caller's workspace")
	}
	if user.Password == "secret123" {
		t.Error("password should be stored hashed")
	}

	var membership models.WorkspaceMembership
	if err := f.db.Where("user_id = ?", user.ID).First(&membership).Error; err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if membership.Role != tenant.RoleManager {
		t.Errorf("membership role = %q, expected manager", membership.Role)
	}

	if _, err := NewUserService(f.db).Create(f.admin, &CreateUserRequest{
		Username: "bob", Password: "secret123", Role: tenant.RoleViewer,
	}); err != ErrUsernameTaken {
		t.Errorf("duplicate username error = %v, expected ErrUsernameTaken", err)
	}
}

func TestUserCreate_ClientRoleNeedsClient(t *testing.T) {
	f := newTestFixture(t)
	svc := NewUserService(f.db)

	if _, err := svc.Create(f.admin, &CreateUserRequest{
		Username: "portal", Password: "secret123", Role: tenant.RoleClient,
	}); err == nil {
		t.Error("client user without client_id should be rejected")
	}

	user := f.createUser(t, "portal", tenant.RoleClient, &f.client.ID)
	if user.ClientID == nil || *user.ClientID != f.client.ID {
		t.Error("client user should carry the client id")
	}

	// Staff users silently drop a stray client id.
	staff := f.createUser(t, "staffer", tenant.RoleManager, &f.client.ID)
	if staff.ClientID != nil {
		t.Error("staff user should not carry a client id")
	}
}

func TestUserList_ScopedToMemberships(t *testing.T) {
	f := newTestFixture(t)
	svc := NewUserService(f.db)

	f.createUser(t, "bob", tenant.RoleManager, nil)
	f.createUser(t, "carol", tenant.RoleViewer, nil)

	// A login with no membership here is invisible.
	outsider := models.User{Username: "mallory", Role: tenant.RoleAdmin, IsActive: true, AuthType: "local"}
	if err := f.db.Create(&outsider).Error; err != nil {
		t.Fatal(err)
	}

	resp, err := svc.List(f.admin, &UserListRequest{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, expected 2", resp.Total)
	}

	filtered, err := svc.List(f.admin, &UserListRequest{Role: tenant.RoleViewer})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if filtered.Total != 1 || filtered.Items[0].Username != "carol" {
		t.Errorf("role filter returned %d rows", filtered.Total)
	}

	if _, err := svc.GetByID(f.admin, outsider.ID); err != ErrUserNotFound {
		t.Errorf("foreign user should be invisible, got %v", err)
	}
}

func TestUserUpdate_LastAdminProtected(t *testing.T) {
	f := newTestFixture(t)
	svc := NewUserService(f.db)

	admin := f.createUser(t, "boss", tenant.RoleAdmin, nil)

	viewer := tenant.RoleViewer
	if _, err := svc.Update(f.admin, admin.ID, &UpdateUserRequest{Role: &viewer}); err != ErrCannotDropLastRole {
		t.Errorf("demoting the only admin: error = %v, expected ErrCannotDropLastRole", err)
	}

	inactive := false
	if _, err := svc.Update(f.admin, admin.ID, &UpdateUserRequest{IsActive: &inactive}); err != ErrCannotDropLastRole {
		t.Errorf("deactivating the only admin: error = %v, expected ErrCannotDropLastRole", err)
	}

	// With a second admin in place the demotion goes through and the
	// membership row follows.
	f.createUser(t, "second", tenant.RoleAdmin, nil)
	updated, err := svc.Update(f.admin, admin.ID, &UpdateUserRequest{Role: &viewer})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Role != tenant.RoleViewer {
		t.Errorf("role = %q, expected viewer", updated.Role)
	}
	var membership models.WorkspaceMembership
	if err := f.db.Where("user_id = ?", admin.ID).First(&membership).Error; err != nil {
		t.Fatal(err)
	}
	if membership.Role != tenant.RoleViewer {
		t.Errorf("membership role = %q, expected viewer", membership.Role)
	}
}

func TestUserDeactivate(t *testing.T) {
	f := newTestFixture(t)
	svc := NewUserService(f.db)

	user := f.createUser(t, "bob", tenant.RoleManager, nil)

	if err := svc.Deactivate(f.admin, user.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	var got models.User
	if err := f.db.First(&got, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("user should be inactive")
	}
	var membership models.WorkspaceMembership
	if err := f.db.Where("user_id = ?", user.ID).First(&membership).Error; err != nil {
		t.Fatal(err)
	}
	if membership.IsActive {
		t.Error("membership should be inactive")
	}

	// Deactivated members drop out of scope entirely.
	if _, err := svc.GetByID(f.admin, user.ID); err != ErrUserNotFound {
		t.Errorf("deactivated user should be out of scope, got %v", err)
	}
}

func TestUserDeactivate_SelfRejected(t *testing.T) {
	f := newTestFixture(t)
	svc := NewUserService(f.db)

	me := f.createUser(t, "selfadmin", tenant.RoleAdmin, nil)
	p := &tenant.Principal{UserID: me.ID, Username: me.Username, Role: tenant.RoleAdmin, WorkspaceID: &f.workspace.ID}

	if err := svc.Deactivate(p, me.ID); err == nil {
		t.Error("self-deactivation should be rejected")
	}
}
