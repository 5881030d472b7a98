package httpapi

import (
	"net/http"
	"strings"

	"github.com/girderhq/girder/internal/audit"
	"github.com/girderhq/girder/internal/auth"
)

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	if !a.ensurePermissions(w, r, "projects.view") {
		return
	}
	ids, unrestricted, err := a.projects.AccessibleProjectIDs(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "project lookup failed")
		return
	}
	if unrestricted {
		writeJSON(w, http.StatusOK, map[string]any{"unrestricted": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unrestricted": false,
		"project_ids":  ids,
	})
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/projects/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	projectID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleProject(w, r, session, projectID)
	case len(parts) == 2 && parts[1] == "members":
		a.handleProjectMembers(w, r, session, projectID)
	case len(parts) == 3 && parts[1] == "members":
		a.handleProjectMember(w, r, session, projectID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleProject(w http.ResponseWriter, r *http.Request, session auth.Session, projectID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, "projects.view") {
		return
	}
	if !a.ensureProjectAccess(w, r, projectID) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"tenant_id":  session.TenantID,
	})
}

func (a *API) handleProjectMembers(w http.ResponseWriter, r *http.Request, session auth.Session, projectID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, "projects.update") {
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := a.rbac.AddProjectMember(r.Context(), session.TenantID, req.UserID, projectID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.member.add", map[string]any{
		"project_id":      projectID,
		"subject_user_id": req.UserID,
	})
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleProjectMember(w http.ResponseWriter, r *http.Request, session auth.Session, projectID, userID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, "projects.update") {
		return
	}
	if err := a.rbac.RemoveProjectMember(r.Context(), session.TenantID, userID, projectID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.member.remove", map[string]any{
		"project_id":      projectID,
		"subject_user_id": userID,
	})
	w.WriteHeader(http.StatusNoContent)
}
