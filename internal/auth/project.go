package auth

import (
	"context"
	"errors"
)

// ProjectAccess decides whether a user may act on a specific project.
type ProjectAccess struct {
	store Store
}

// NewProjectAccess constructs a resolver over the given store.
func NewProjectAccess(store Store) (*ProjectAccess, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &ProjectAccess{store: store}, nil
}

// HasAccess fails closed: a missing user or project is false, a tenant
// mismatch is false before membership rows are even consulted, and only an
// explicit membership row grants access when the blanket flag is off.
func (p *ProjectAccess) HasAccess(ctx context.Context, userID, projectID string) (bool, error) {
	user, err := p.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.AllProjectsAccess {
		return true, nil
	}
	tenantID, err := p.store.Projects(ctx).TenantOf(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if tenantID != user.TenantID {
		return false, nil
	}
	memberships, err := p.store.Projects(ctx).MembershipsFor(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range memberships {
		if id == projectID {
			return true, nil
		}
	}
	return false, nil
}

// AccessibleProjectIDs returns the membership rows for the user, or
// unrestricted=true when the blanket flag is set. Callers must treat
// unrestricted and an empty list as distinct states: blanket access versus
// access to nothing.
func (p *ProjectAccess) AccessibleProjectIDs(ctx context.Context, userID string) (ids []string, unrestricted bool, err error) {
	user, err := p.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if user.AllProjectsAccess {
		return nil, true, nil
	}
	ids, err = p.store.Projects(ctx).MembershipsFor(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return ids, false, nil
}
