package tenant

import "github.com/kanzhen/bizmanage/pkg/response"

// ErrPermissionDenied is returned by Require when the role matrix denies an
// action.
var ErrPermissionDenied = response.NewForbiddenCode("PERMISSION_DENIED", "you do not have permission to perform this action")

// Resource names used by the permission matrix.
const (
	ResourceWorkspaces    = "workspaces"
	ResourceUsers         = "users"
	ResourceClients       = "clients"
	ResourceProjects      = "projects"
	ResourceQuotations    = "quotations"
	ResourceInvoices      = "invoices"
	ResourcePayments      = "payments"
	ResourceFiles         = "files"
	ResourceConversations = "conversations"
	ResourceDashboard     = "dashboard"
	ResourceSettings      = "settings"
)

// Action names.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSend   = "send" // mail out an invoice or quotation
)

const allActions = "*"

// rolePermissions is the fixed role -> resource -> actions matrix. Workspace
// scoping is a separate, orthogonal check: being allowed to act on invoices
// says nothing about which invoices a query will return.
var rolePermissions = map[string]map[string][]string{
	RoleAdmin: {
		ResourceWorkspaces:    {ActionView, ActionUpdate},
		ResourceUsers:         {allActions},
		ResourceClients:       {allActions},
		ResourceProjects:      {allActions},
		ResourceQuotations:    {allActions},
		ResourceInvoices:      {allActions},
		ResourcePayments:      {ActionView, ActionCreate},
		ResourceFiles:         {allActions},
		ResourceConversations: {allActions},
		ResourceDashboard:     {ActionView},
		ResourceSettings:      {ActionView, ActionUpdate},
	},
	RoleManager: {
		ResourceWorkspaces:    {ActionView},
		ResourceUsers:         {ActionView},
		ResourceClients:       {allActions},
		ResourceProjects:      {allActions},
		ResourceQuotations:    {allActions},
		ResourceInvoices:      {allActions},
		ResourcePayments:      {ActionView, ActionCreate},
		ResourceFiles:         {allActions},
		ResourceConversations: {allActions},
		ResourceDashboard:     {ActionView},
	},
	RoleAccountant: {
		ResourceWorkspaces:    {ActionView},
		ResourceClients:       {ActionView},
		ResourceProjects:      {ActionView},
		ResourceQuotations:    {ActionView},
		ResourceInvoices:      {ActionView, ActionCreate, ActionUpdate, ActionSend},
		ResourcePayments:      {ActionView, ActionCreate},
		ResourceFiles:         {ActionView},
		ResourceConversations: {ActionView},
		ResourceDashboard:     {ActionView},
	},
	RoleClient: {
		ResourceProjects:      {ActionView},
		ResourceQuotations:    {ActionView},
		ResourceInvoices:      {ActionView},
		ResourcePayments:      {ActionView},
		ResourceFiles:         {ActionView},
		ResourceConversations: {ActionView, ActionCreate},
		ResourceDashboard:     {ActionView},
	},
	RoleViewer: {
		ResourceClients:       {ActionView},
		ResourceProjects:      {ActionView},
		ResourceQuotations:    {ActionView},
		ResourceInvoices:      {ActionView},
		ResourcePayments:      {ActionView},
		ResourceFiles:         {ActionView},
		ResourceConversations: {ActionView},
		ResourceDashboard:     {ActionView},
	},
}

// Can reports whether the principal's role allows an action on a resource.
// Super-admins bypass the matrix entirely.
func Can(p *Principal, resource, action string) bool {
	if p.IsSuperAdmin {
		return true
	}
	perms, ok := rolePermissions[p.Role]
	if !ok {
		return false
	}
	actions, ok := perms[resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == allActions || a == action {
			return true
		}
	}
	return false
}

// Require is the error-returning form of Can, called once per operation by
// the services.
func Require(p *Principal, resource, action string) error {
	if !Can(p, resource, action) {
		return ErrPermissionDenied
	}
	return nil
}
