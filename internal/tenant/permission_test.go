package tenant

import (
	"errors"
	"testing"
)

func TestCan_AdminFullInvoiceAccess(t *testing.T) {
	p := &Principal{Role: RoleAdmin}

	for _, action := range []string{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionSend} {
		if !Can(p, ResourceInvoices, action) {
			t.Errorf("admin should be allowed invoices:%s", action)
		}
	}
}

func TestCan_ViewerReadOnly(t *testing.T) {
	p := &Principal{Role: RoleViewer}

	if !Can(p, ResourceInvoices, ActionView) {
		t.Error("viewer should be allowed invoices:view")
	}
	for _, action := range []string{ActionCreate, ActionUpdate, ActionDelete} {
		if Can(p, ResourceInvoices, action) {
			t.Errorf("viewer should be denied invoices:%s", action)
		}
	}
}

func TestCan_AccountantLedgerAccess(t *testing.T) {
	p := &Principal{Role: RoleAccountant}

	if !Can(p, ResourcePayments, ActionCreate) {
		t.Error("accountant should be allowed payments:create")
	}
	if !Can(p, ResourceInvoices, ActionSend) {
		t.Error("accountant should be allowed invoices:send")
	}
	if Can(p, ResourceInvoices, ActionDelete) {
		t.Error("accountant should be denied invoices:delete")
	}
	if Can(p, ResourceClients, ActionCreate) {
		t.Error("accountant should be denied clients:create")
	}
}

func TestCan_ClientRole(t *testing.T) {
	p := &Principal{Role: RoleClient}

	if !Can(p, ResourceInvoices, ActionView) {
		t.Error("client should be allowed invoices:view")
	}
	if Can(p, ResourceClients, ActionView) {
		t.Error("client should be denied clients:view")
	}
	if !Can(p, ResourceConversations, ActionCreate) {
		t.Error("client should be allowed conversations:create")
	}
	if Can(p, ResourcePayments, ActionCreate) {
		t.Error("client should be denied payments:create")
	}
}

func TestCan_SuperAdminBypassesMatrix(t *testing.T) {
	p := &Principal{Role: "nonexistent", IsSuperAdmin: true}

	if !Can(p, ResourceSettings, ActionDelete) {
		t.Error("super admin should bypass the matrix entirely")
	}
}

func TestCan_UnknownRoleDenied(t *testing.T) {
	p := &Principal{Role: "intern"}

	if Can(p, ResourceInvoices, ActionView) {
		t.Error("unknown role should be denied everything")
	}
}

func TestRequire(t *testing.T) {
	if err := Require(&Principal{Role: RoleAdmin}, ResourceInvoices, ActionCreate); err != nil {
		t.Errorf("Require() unexpected error: %v", err)
	}

	err := Require(&Principal{Role: RoleViewer}, ResourceInvoices, ActionDelete)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Require() = %v, expected ErrPermissionDenied", err)
	}
}
