package tenant

import (
	"testing"
)

func uintPtr(v uint) *uint { return &v }

func TestPredicate_Unrestricted(t *testing.T) {
	frag, params := UnrestrictedScope().Predicate("", "")
	if frag != "" {
		t.Errorf("unrestricted predicate should be empty, got %q", frag)
	}
	if len(params) != 0 {
		t.Errorf("unrestricted predicate should have no params, got %v", params)
	}
}

func TestPredicate_Workspace(t *testing.T) {
	frag, params := WorkspaceScope(42).Predicate("", "")
	if frag != "workspace_id = ?" {
		t.Errorf("frag = %q, expected %q", frag, "workspace_id = ?")
	}
	if len(params) != 1 || params[0] != uint(42) {
		t.Errorf("params = %v, expected [42]", params)
	}
}

func TestPredicate_AliasAndColumn(t *testing.T) {
	frag, params := WorkspaceScope(7).Predicate("i", "workspace_id")
	if frag != "i.workspace_id = ?" {
		t.Errorf("frag = %q, expected %q", frag, "i.workspace_id = ?")
	}
	if len(params) != 1 {
		t.Errorf("expected exactly one param, got %d", len(params))
	}
}

func TestPredicate_UnresolvedFailsClosed(t *testing.T) {
	// The zero scope must never widen a query.
	frag, params := Scope{}.Predicate("", "")
	if frag != "1 = 0" {
		t.Errorf("unresolved predicate = %q, expected match-nothing", frag)
	}
	if len(params) != 0 {
		t.Errorf("unresolved predicate should have no params, got %v", params)
	}
}

func TestClientPredicate_ClientRole(t *testing.T) {
	p := &Principal{Role: RoleClient, ClientID: uintPtr(7)}

	frag, params := ClientPredicate(p, "")
	if frag != "client_id = ?" {
		t.Errorf("frag = %q, expected %q", frag, "client_id = ?")
	}
	if len(params) != 1 || params[0] != uint(7) {
		t.Errorf("params = %v, expected [7]", params)
	}
}

func TestClientPredicate_StaffRolesEmpty(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleManager, RoleAccountant, RoleViewer} {
		p := &Principal{Role: role, ClientID: uintPtr(7)}
		frag, _ := ClientPredicate(p, "")
		if frag != "" {
			t.Errorf("role %s should not get a client predicate, got %q", role, frag)
		}
	}
}

func TestClientPredicate_ClientWithoutClientID(t *testing.T) {
	p := &Principal{Role: RoleClient}
	frag, _ := ClientPredicate(p, "")
	if frag != "" {
		t.Errorf("client role without client_id should not get a predicate, got %q", frag)
	}
}

func TestClientPredicate_IndependentOfWorkspacePredicate(t *testing.T) {
	// Both predicates must be satisfiable at once: a client-role principal is
	// scoped to its workspace AND its own client record.
	p := &Principal{Role: RoleClient, ClientID: uintPtr(7)}
	scope := WorkspaceScope(3)

	wsFrag, wsParams := scope.Predicate("", "")
	clFrag, clParams := ClientPredicate(p, "")

	if wsFrag == "" || clFrag == "" {
		t.Fatal("both predicates should be non-empty for a scoped client principal")
	}
	if len(wsParams)+len(clParams) != 2 {
		t.Errorf("expected two bound params in total, got %d", len(wsParams)+len(clParams))
	}
}

func TestCanAccessClientRow(t *testing.T) {
	tests := []struct {
		name        string
		principal   *Principal
		rowClientID uint
		want        bool
	}{
		{"super admin", &Principal{IsSuperAdmin: true}, 99, true},
		{"staff role", &Principal{Role: RoleManager}, 99, true},
		{"accountant", &Principal{Role: RoleAccountant}, 99, true},
		{"client own row", &Principal{Role: RoleClient, ClientID: uintPtr(7)}, 7, true},
		{"client other row", &Principal{Role: RoleClient, ClientID: uintPtr(7)}, 8, false},
		{"client no client_id", &Principal{Role: RoleClient}, 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessClientRow(tt.principal, tt.rowClientID); got != tt.want {
				t.Errorf("CanAccessClientRow() = %v, expected %v", got, tt.want)
			}
		})
	}
}
