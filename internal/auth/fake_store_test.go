package auth

import (
	"context"
	"sync"
)

// fakeStore is an in-memory Store used across the service, rbac and project
// tests. All maps are guarded by one mutex; the tests exercise concurrent
// paths through the blacklist, not the store.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*User
	roles       map[string]*Role
	permissions map[string]struct{}
	rolePerms   map[string][]RolePermission
	userRoles   map[string]map[string]struct{}
	projects    map[string]string   // project id -> tenant id
	members     map[string][]string // user id -> project ids
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*User),
		roles:       make(map[string]*Role),
		permissions: make(map[string]struct{}),
		rolePerms:   make(map[string][]RolePermission),
		userRoles:   make(map[string]map[string]struct{}),
		projects:    make(map[string]string),
		members:     make(map[string][]string),
	}
}

func (f *fakeStore) Users(context.Context) UserStore             { return fakeUserStore{f} }
func (f *fakeStore) Roles(context.Context) RoleStore             { return fakeRoleStore{f} }
func (f *fakeStore) Permissions(context.Context) PermissionStore { return fakePermissionStore{f} }
func (f *fakeStore) Projects(context.Context) ProjectStore       { return fakeProjectStore{f} }

func (f *fakeStore) addUser(u *User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeStore) addProject(projectID, tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[projectID] = tenantID
}

func (f *fakeStore) addMembership(userID, projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[userID] = append(f.members[userID], projectID)
}

// materialize returns a copy of the user with assigned roles and their
// permission entries resolved, the way the SQL store hydrates them.
func (f *fakeStore) materialize(u *User) *User {
	out := *u
	out.Roles = nil
	for _, role := range u.Roles {
		out.Roles = append(out.Roles, role)
	}
	for roleID := range f.userRoles[u.ID] {
		role, ok := f.roles[roleID]
		if !ok {
			continue
		}
		r := *role
		r.Permissions = append([]RolePermission(nil), f.rolePerms[roleID]...)
		out.Roles = append(out.Roles, r)
	}
	return &out
}

type fakeUserStore struct{ f *fakeStore }

func (s fakeUserStore) Find(_ context.Context, id string) (*User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	u, ok := s.f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.f.materialize(u), nil
}

func (s fakeUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for _, u := range s.f.users {
		if u.Username == username {
			return s.f.materialize(u), nil
		}
	}
	return nil, ErrNotFound
}

type fakeRoleStore struct{ f *fakeStore }

func (s fakeRoleStore) Create(_ context.Context, role *Role) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if role.ID == "" {
		role.ID = "role-" + role.Name
	}
	s.f.roles[role.ID] = role
	return nil
}

func (s fakeRoleStore) Find(_ context.Context, tenantID, roleID string) (*Role, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	role, ok := s.f.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return nil, ErrNotFound
	}
	r := *role
	r.Permissions = append([]RolePermission(nil), s.f.rolePerms[roleID]...)
	return &r, nil
}

func (s fakeRoleStore) ListByTenant(_ context.Context, tenantID string) ([]*Role, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	var out []*Role
	for _, role := range s.f.roles {
		if role.TenantID == tenantID {
			r := *role
			out = append(out, &r)
		}
	}
	return out, nil
}

func (s fakeRoleStore) Rename(_ context.Context, tenantID, roleID, name string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	role, ok := s.f.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return ErrNotFound
	}
	role.Name = name
	return nil
}

func (s fakeRoleStore) Delete(_ context.Context, tenantID, roleID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	role, ok := s.f.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.f.roles, roleID)
	return nil
}

func (s fakeRoleStore) Assign(_ context.Context, userID, roleID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.userRoles[userID] == nil {
		s.f.userRoles[userID] = make(map[string]struct{})
	}
	s.f.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (s fakeRoleStore) Unassign(_ context.Context, userID, roleID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.userRoles[userID], roleID)
	return nil
}

type fakePermissionStore struct{ f *fakeStore }

func (s fakePermissionStore) Ensure(_ context.Context, keys []string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for _, key := range keys {
		s.f.permissions[key] = struct{}{}
	}
	return nil
}

func (s fakePermissionStore) SetForRole(_ context.Context, roleID string, entries []RolePermission) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.rolePerms[roleID] = append([]RolePermission(nil), entries...)
	return nil
}

type fakeProjectStore struct{ f *fakeStore }

func (s fakeProjectStore) TenantOf(_ context.Context, projectID string) (string, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	tenantID, ok := s.f.projects[projectID]
	if !ok {
		return "", ErrNotFound
	}
	return tenantID, nil
}

func (s fakeProjectStore) MembershipsFor(_ context.Context, userID string) ([]string, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return append([]string(nil), s.f.members[userID]...), nil
}

func (s fakeProjectStore) AddMember(_ context.Context, userID, projectID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.members[userID] = append(s.f.members[userID], projectID)
	return nil
}

func (s fakeProjectStore) RemoveMember(_ context.Context, userID, projectID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	kept := s.f.members[userID][:0]
	for _, id := range s.f.members[userID] {
		if id != projectID {
			kept = append(kept, id)
		}
	}
	s.f.members[userID] = kept
	return nil
}
