package tenant

// Role names. The matrix in permission.go maps these onto resource actions.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleAccountant = "accountant"
	RoleClient     = "client"
	RoleViewer     = "viewer"
)

// Principal is the authenticated identity attached to a request. It is built
// once by the auth middleware from the JWT claims and threaded through every
// service call; nothing in this package mutates it except the per-request
// scope cache set by Resolve.
type Principal struct {
	UserID       uint
	Username     string
	Role         string
	IsSuperAdmin bool

	// WorkspaceID is the workspace pinned on the user record, if any.
	// When nil the resolver falls back to the newest active membership.
	WorkspaceID *uint

	// ClientID narrows client-role principals to a single client record.
	ClientID *uint

	// scope caches the resolved scope for the remainder of the request.
	scope *Scope
}

// IsClient reports whether the principal is a client-role user bound to a
// client record.
func (p *Principal) IsClient() bool {
	return p.Role == RoleClient && p.ClientID != nil
}

// CachedScope returns the scope cached by a previous Resolve call, if any.
func (p *Principal) CachedScope() (Scope, bool) {
	if p.scope == nil {
		return Scope{}, false
	}
	return *p.scope, true
}
