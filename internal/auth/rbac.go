package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RBACService is the admin surface over roles, permission assignments and
// project memberships. It validates input, enforces tenant scoping and the
// system-role freeze, then delegates to the store.
type RBACService struct {
	store   Store
	catalog *Catalog
}

// NewRBACService constructs the admin service.
func NewRBACService(store Store, catalog *Catalog) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if catalog == nil {
		return nil, errors.New("auth: catalog is required")
	}
	return &RBACService{store: store, catalog: catalog}, nil
}

// Catalog exposes the permission-key space for listing endpoints.
func (s *RBACService) Catalog() *Catalog { return s.catalog }

// CreateRole creates a non-system role inside the tenant.
func (s *RBACService) CreateRole(ctx context.Context, tenantID, name string) (*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{TenantID: tenantID, Name: name}
	if err := s.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles returns every role in the tenant.
func (s *RBACService) ListRoles(ctx context.Context, tenantID string) ([]*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).ListByTenant(ctx, tenantID)
}

// GetRole loads one role, tenant-scoped.
func (s *RBACService) GetRole(ctx context.Context, tenantID, roleID string) (*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	roleID = strings.TrimSpace(roleID)
	if tenantID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: tenant_id and role_id are required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Find(ctx, tenantID, roleID)
}

// RenameRole updates a role name. System roles are frozen.
func (s *RBACService) RenameRole(ctx context.Context, tenantID, roleID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.System {
		return ErrSystemRole
	}
	return s.store.Roles(ctx).Rename(ctx, tenantID, roleID, name)
}

// DeleteRole removes a role. System roles are undeletable.
func (s *RBACService) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.System {
		return ErrSystemRole
	}
	return s.store.Roles(ctx).Delete(ctx, tenantID, roleID)
}

// SetRolePermissions replaces the role's permission entries. Every key must
// pass the catalog test; an invalid key rejects the whole request rather than
// being dropped, since a silently dropped typo would read as granted.
// Missing permission rows for valid keys are materialized on the fly.
func (s *RBACService) SetRolePermissions(ctx context.Context, tenantID, roleID string, entries []RolePermission) error {
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.System {
		return ErrSystemRole
	}

	deduped := make([]RolePermission, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry.Key = strings.TrimSpace(entry.Key)
		if !s.catalog.IsValidKey(entry.Key) {
			return fmt.Errorf("%w: %q", ErrInvalidPermissionKey, entry.Key)
		}
		if entry.Action != ActionAllow && entry.Action != ActionDeny {
			return fmt.Errorf("%w: action must be allow or deny", ErrInvalidInput)
		}
		dedupeKey := entry.Key + "|" + string(entry.Action)
		if _, ok := seen[dedupeKey]; ok {
			continue
		}
		seen[dedupeKey] = struct{}{}
		entry.RoleID = roleID
		deduped = append(deduped, entry)
		keys = append(keys, entry.Key)
	}

	if err := s.store.Permissions(ctx).Ensure(ctx, keys); err != nil {
		return err
	}
	return s.store.Permissions(ctx).SetForRole(ctx, roleID, deduped)
}

// AssignRole attaches a role to a user. Both must belong to the tenant.
func (s *RBACService) AssignRole(ctx context.Context, tenantID, userID, roleID string) error {
	user, err := s.tenantUser(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if _, err := s.GetRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	return s.store.Roles(ctx).Assign(ctx, user.ID, roleID)
}

// UnassignRole detaches a role from a user, tenant-scoped.
func (s *RBACService) UnassignRole(ctx context.Context, tenantID, userID, roleID string) error {
	user, err := s.tenantUser(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if _, err := s.GetRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	return s.store.Roles(ctx).Unassign(ctx, user.ID, roleID)
}

// AddProjectMember records a membership row after checking that both the
// user and the project belong to the tenant.
func (s *RBACService) AddProjectMember(ctx context.Context, tenantID, userID, projectID string) error {
	user, err := s.tenantUser(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	projectTenant, err := s.store.Projects(ctx).TenantOf(ctx, projectID)
	if err != nil {
		return err
	}
	if projectTenant != tenantID {
		return ErrNotFound
	}
	return s.store.Projects(ctx).AddMember(ctx, user.ID, projectID)
}

// RemoveProjectMember deletes a membership row, tenant-scoped.
func (s *RBACService) RemoveProjectMember(ctx context.Context, tenantID, userID, projectID string) error {
	user, err := s.tenantUser(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	projectTenant, err := s.store.Projects(ctx).TenantOf(ctx, projectID)
	if err != nil {
		return err
	}
	if projectTenant != tenantID {
		return ErrNotFound
	}
	return s.store.Projects(ctx).RemoveMember(ctx, user.ID, projectID)
}

func (s *RBACService) tenantUser(ctx context.Context, tenantID, userID string) (*User, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("%w: tenant_id and user_id are required", ErrInvalidInput)
	}
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TenantID != tenantID {
		// A user id from another tenant behaves exactly like a missing one.
		return nil, ErrNotFound
	}
	return user, nil
}
