package tenant

import (
	"gorm.io/gorm"
)

// DefaultScopeColumn is the tenant foreign key carried by every scoped table.
const DefaultScopeColumn = "workspace_id"

// matchNothing is the fail-closed fragment used for unresolved scopes. An
// unresolved scope must never widen a query.
const matchNothing = "1 = 0"

// Predicate turns the scope into a SQL fragment plus its bound parameters,
// composable with any other predicate by plain AND-ing. column defaults to
// workspace_id; alias, when non-empty, qualifies the column.
//
//	unrestricted        ->  "", nil            (matches everything)
//	workspace resolved  ->  "t.workspace_id = ?", [id]
//	unresolved          ->  "1 = 0", nil       (matches nothing)
func (s Scope) Predicate(alias, column string) (string, []interface{}) {
	if s.Unrestricted() {
		return "", nil
	}
	id, ok := s.WorkspaceID()
	if !ok {
		return matchNothing, nil
	}
	return qualify(alias, column) + " = ?", []interface{}{id}
}

// Apply composes the scope predicate onto a gorm query.
func (s Scope) Apply(q *gorm.DB) *gorm.DB {
	return s.ApplyOn(q, "")
}

// ApplyOn composes the scope predicate onto a gorm query using a table alias.
func (s Scope) ApplyOn(q *gorm.DB, alias string) *gorm.DB {
	frag, params := s.Predicate(alias, "")
	if frag == "" {
		return q
	}
	return q.Where(frag, params...)
}

// ClientPredicate is the legacy client-role restriction: client-role
// principals additionally only see rows belonging to their own client
// record. It is independent of the workspace predicate; both always apply,
// neither substitutes for the other.
func ClientPredicate(p *Principal, alias string) (string, []interface{}) {
	if !p.IsClient() {
		return "", nil
	}
	return qualify(alias, "client_id") + " = ?", []interface{}{*p.ClientID}
}

// ApplyClient composes the client-role predicate onto a gorm query.
func ApplyClient(q *gorm.DB, p *Principal) *gorm.DB {
	frag, params := ClientPredicate(p, "")
	if frag == "" {
		return q
	}
	return q.Where(frag, params...)
}

// ScopedQuery applies both predicates in one call. This is the entry point
// used by the services for every list/lookup on a tenant-scoped table.
func ScopedQuery(q *gorm.DB, s Scope, p *Principal) *gorm.DB {
	return ApplyClient(s.Apply(q), p)
}

// CanAccessClientRow is the row-level mirror of ClientPredicate for
// single-row reads: super-admins and staff roles pass, a client-role
// principal passes only for rows carrying its own client id.
func CanAccessClientRow(p *Principal, rowClientID uint) bool {
	if p.IsSuperAdmin {
		return true
	}
	if p.Role != RoleClient {
		return true
	}
	return p.ClientID != nil && *p.ClientID == rowClientID
}

func qualify(alias, column string) string {
	if column == "" {
		column = DefaultScopeColumn
	}
	if alias == "" {
		return column
	}
	return alias + "." + column
}
