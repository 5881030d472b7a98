package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/girderhq/girder/internal/audit"
	"github.com/girderhq/girder/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type refreshResponse struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	pair, session, err := a.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	a.setAccessCookie(w, pair.AccessToken)
	a.setRefreshCookie(w, pair.RefreshToken)

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":   session.UserID,
		"tenant_id": session.TenantID,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

// handleRefresh is the explicit rotation endpoint. It bypasses the gate by
// policy: its whole purpose is to run when the access token is already dead.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	refreshToken := a.refreshTokenFrom(r)
	if refreshToken == "" {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return
	}

	access, expiresAt, session, err := a.sessions.RefreshAccess(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		case errors.Is(err, auth.ErrTenantNotFound):
			writeError(w, r, http.StatusForbidden, codeForbidden)
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	a.setAccessCookie(w, access)

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": session.UserID,
	})

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
	})
}

// handleLogout revokes both tokens before clearing the cookies. Both steps
// are required: clearing alone leaves still-valid tokens usable if the
// caller resubmits them manually.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	accessToken := a.accessTokenFrom(r)
	refreshToken := a.refreshTokenFrom(r)

	if err := a.sessions.Logout(r.Context(), accessToken, refreshToken); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}

	a.clearCookie(w, a.cfg.AccessCookie)
	a.clearCookie(w, a.cfg.RefreshCookie)

	_ = audit.LogEvent(r.Context(), "auth.logout", nil)

	w.WriteHeader(http.StatusNoContent)
}
