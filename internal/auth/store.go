package auth

import "context"

// Store describes the persistence operations the auth subsystem requires.
// The business schema (projects, staff, invoices, ...) lives elsewhere; this
// core only reads the slices of it needed for authorization decisions.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	Projects(ctx context.Context) ProjectStore
}

// UserStore loads principals. Find returns the user with roles and role
// permissions resolved, ready for ResolveEffective.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// RoleStore manages roles and role assignments. All reads and mutations are
// tenant-scoped; a role id from another tenant behaves as not found.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, tenantID, roleID string) (*Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Role, error)
	Rename(ctx context.Context, tenantID, roleID, name string) error
	Delete(ctx context.Context, tenantID, roleID string) error

	Assign(ctx context.Context, userID, roleID string) error
	Unassign(ctx context.Context, userID, roleID string) error
}

// PermissionStore manages permission rows and their binding to roles.
type PermissionStore interface {
	// Ensure creates permission rows for keys that do not exist yet. Keys are
	// assumed already validated against the catalog.
	Ensure(ctx context.Context, keys []string) error
	SetForRole(ctx context.Context, roleID string, entries []RolePermission) error
}

// ProjectStore exposes the minimal project surface needed for access checks.
type ProjectStore interface {
	TenantOf(ctx context.Context, projectID string) (string, error)
	MembershipsFor(ctx context.Context, userID string) ([]string, error)
	AddMember(ctx context.Context, userID, projectID string) error
	RemoveMember(ctx context.Context, userID, projectID string) error
}
