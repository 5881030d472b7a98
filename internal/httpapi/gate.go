package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// Stable error discriminators. 401 and 403 are never collapsed.
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
)

// gate authenticates the request before the handler runs.
//
// Per-request state machine: the access token (cookie, then bearer header) is
// tried first. A revoked access token terminates the request immediately;
// it must not fall through to the refresh path, or logout would be
// ineffective against a stolen refresh cookie. Only a missing or invalid
// access token reaches the refresh path, which mints and sets a fresh access
// cookie when the refresh token (cookie only) is live.
func (a *API) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := a.accessTokenFrom(r)
		refreshToken := a.refreshTokenFrom(r)

		if accessToken != "" {
			session, err := a.sessions.AuthenticateAccess(r.Context(), accessToken)
			switch {
			case err == nil:
				a.dispatch(w, r, next, session, accessToken)
				return
			case errors.Is(err, auth.ErrTokenRevoked):
				// Revocation short-circuits before refresh is attempted.
				obs.RevokedRejection()
				writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
				return
			case errors.Is(err, auth.ErrTenantNotFound):
				writeError(w, r, http.StatusForbidden, codeForbidden)
				return
			case errors.Is(err, auth.ErrInvalidToken):
				// fall through to the refresh path
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
		}

		if refreshToken != "" {
			access, _, session, err := a.sessions.RefreshAccess(r.Context(), refreshToken)
			switch {
			case err == nil:
				a.setAccessCookie(w, access)
				obs.TokenRotated()
				a.dispatch(w, r, next, session, access)
				return
			case errors.Is(err, auth.ErrTenantNotFound):
				writeError(w, r, http.StatusForbidden, codeForbidden)
				return
			case errors.Is(err, auth.ErrInvalidToken):
				// fall through to the terminal 401
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
		}

		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
	})
}

func (a *API) dispatch(w http.ResponseWriter, r *http.Request, next http.Handler, session auth.Session, token string) {
	ctx := auth.ContextWithSession(r.Context(), session)
	ctx = auth.ContextWithToken(ctx, token)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// ensurePermissions enforces an ALL-of requirement on the route; it writes
// the 403 itself and reports whether the handler may proceed.
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, keys ...string) bool {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return false
	}
	if !session.Permissions.HasAllPermissions(keys...) {
		obs.PermissionDenied(r.URL.Path)
		writeError(w, r, http.StatusForbidden, codeForbidden)
		return false
	}
	return true
}

// ensureAnyPermission enforces an ANY-of requirement on the route.
func (a *API) ensureAnyPermission(w http.ResponseWriter, r *http.Request, keys ...string) bool {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return false
	}
	if !session.Permissions.HasAnyPermission(keys...) {
		obs.PermissionDenied(r.URL.Path)
		writeError(w, r, http.StatusForbidden, codeForbidden)
		return false
	}
	return true
}

// ensureProjectAccess enforces tenant + membership gating for one project.
func (a *API) ensureProjectAccess(w http.ResponseWriter, r *http.Request, projectID string) bool {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated)
		return false
	}
	allowed, err := a.projects.HasAccess(r.Context(), session.UserID, projectID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "project access check failed")
		return false
	}
	if !allowed {
		writeError(w, r, http.StatusForbidden, codeForbidden)
		return false
	}
	return true
}

// accessTokenFrom reads the access token from the cookie first, then the
// Authorization header.
func (a *API) accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(a.cfg.AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

// refreshTokenFrom reads the refresh token from its cookie only. Accepting it
// via header would expose the long-lived credential to client-side script and
// proxy logs the same way access tokens already are.
func (a *API) refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(a.cfg.RefreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

func (a *API) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.AccessCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.cfg.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.RefreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
