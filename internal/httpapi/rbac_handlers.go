package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/girderhq/girder/internal/audit"
	"github.com/girderhq/girder/internal/auth"
)

type createRoleRequest struct {
	Name string `json:"name"`
}

type renameRoleRequest struct {
	Name string `json:"name"`
}

type rolePermissionEntry struct {
	Key    string `json:"key"`
	Action string `json:"action"`
}

type setRolePermissionsRequest struct {
	Permissions []rolePermissionEntry `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	catalog := a.rbac.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":       catalog.Keys(),
		"resources":  catalog.Resources(),
		"operations": catalog.Operations(),
		"special":    catalog.SpecialKeys(),
	})
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, "roles.view") {
			return
		}
		roles, err := a.rbac.ListRoles(r.Context(), session.TenantID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": rolesPayload(roles)})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, "roles.create") {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), session.TenantID, req.Name)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, rolePayload(role))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleRole(w, r, session, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, session, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, session auth.Session, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, "roles.view") {
			return
		}
		role, err := a.rbac.GetRole(r.Context(), session.TenantID, roleID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rolePayload(role))
	case http.MethodPut:
		if !a.ensurePermissions(w, r, "roles.update") {
			return
		}
		var req renameRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		if err := a.rbac.RenameRole(r.Context(), session.TenantID, roleID, req.Name); err != nil {
			handleRBACError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.rename", map[string]any{
			"role_id": roleID,
			"name":    req.Name,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if !a.ensurePermissions(w, r, "roles.delete") {
			return
		}
		if err := a.rbac.DeleteRole(r.Context(), session.TenantID, roleID); err != nil {
			handleRBACError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{
			"role_id": roleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, session auth.Session, roleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.ensurePermissions(w, r, "roles.update") {
		return
	}
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	entries := make([]auth.RolePermission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		entries = append(entries, auth.RolePermission{
			Key:    p.Key,
			Action: auth.Action(strings.TrimSpace(strings.ToLower(p.Action))),
		})
	}
	if err := a.rbac.SetRolePermissions(r.Context(), session.TenantID, roleID, entries); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.permissions.update", map[string]any{
		"role_id": roleID,
		"count":   len(entries),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, session, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleUserRole(w, r, session, userID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, session auth.Session, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, "users.update") {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.RoleID) == "" {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	if err := a.rbac.AssignRole(r.Context(), session.TenantID, userID, req.RoleID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.assign_role", map[string]any{
		"subject_user_id": userID,
		"role_id":         req.RoleID,
	})
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, session auth.Session, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, "users.update") {
		return
	}
	if err := a.rbac.UnassignRole(r.Context(), session.TenantID, userID, roleID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.unassign_role", map[string]any{
		"subject_user_id": userID,
		"role_id":         roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func handleRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidPermissionKey):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrSystemRole):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "rbac operation failed")
	}
}

func rolePayload(role *auth.Role) map[string]any {
	perms := make([]map[string]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		perms = append(perms, map[string]string{"key": p.Key, "action": string(p.Action)})
	}
	return map[string]any{
		"id":          role.ID,
		"name":        role.Name,
		"system":      role.System,
		"permissions": perms,
		"created_at":  role.CreatedAt,
		"updated_at":  role.UpdatedAt,
	}
}

func rolesPayload(roles []*auth.Role) []map[string]any {
	out := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, rolePayload(role))
	}
	return out
}
