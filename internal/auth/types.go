package auth

import "time"

// Action states whether a role permission grants or withdraws a key.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// User is a back-office account scoped to exactly one tenant.
type User struct {
	ID          string
	TenantID    string
	Username    string
	DisplayName string

	PasswordHash string
	Active       bool

	// AllProjectsAccess bypasses membership rows entirely. It does not bypass
	// permission checks; those are a separate axis.
	AllProjectsAccess bool

	Roles []Role

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role groups permission entries inside one tenant. System roles are seeded
// at install time and can never be mutated or deleted.
type Role struct {
	ID       string
	TenantID string
	Name     string
	System   bool

	Permissions []RolePermission

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RolePermission binds a catalog key to a role with an allow or deny action.
type RolePermission struct {
	RoleID string
	Key    string
	Action Action
}

// Membership grants a user access to a single project. Rows are only
// consulted when the user's AllProjectsAccess flag is false.
type Membership struct {
	UserID    string
	ProjectID string
	CreatedAt time.Time
}
