package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/obs"
)

// ReadyProbe reports backing-store readiness for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config holds the HTTP-facing auth settings.
type Config struct {
	AccessCookie  string
	RefreshCookie string
	SecureCookies bool
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// MaxBodyBytes caps request body size across all routes. Zero
	// disables the cap.
	MaxBodyBytes int64

	// RateBurst and RatePerSecond drive the per-IP limiter. The limiter
	// is off unless both are positive.
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	handler    http.Handler
	sessions   *auth.Service
	rbac       *auth.RBACService
	projects   *auth.ProjectAccess
	cfg        Config
	readyProbe ReadyProbe
	version    string
}

// New wires the route table. Paths registered without the gate are public by
// policy: the login/refresh/logout endpoints, the probes and the metrics
// scrape. Everything else goes through the request gate.
func New(sessions *auth.Service, rbac *auth.RBACService, projects *auth.ProjectAccess, cfg Config, rp ReadyProbe, version string) *API {
	if cfg.AccessCookie == "" {
		cfg.AccessCookie = "girder_access"
	}
	if cfg.RefreshCookie == "" {
		cfg.RefreshCookie = "girder_refresh"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	a := &API{
		mux:        http.NewServeMux(),
		sessions:   sessions,
		rbac:       rbac,
		projects:   projects,
		cfg:        cfg,
		readyProbe: rp,
		version:    version,
	}

	// public routes
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// gated routes
	a.mux.Handle("/v1/permissions", a.gate(http.HandlerFunc(a.handlePermissionCatalog)))
	a.mux.Handle("/v1/roles", a.gate(http.HandlerFunc(a.handleRolesCollection)))
	a.mux.Handle("/v1/roles/", a.gate(http.HandlerFunc(a.handleRoleResource)))
	a.mux.Handle("/v1/users/", a.gate(http.HandlerFunc(a.handleUserResource)))
	a.mux.Handle("/v1/projects", a.gate(http.HandlerFunc(a.handleProjectsCollection)))
	a.mux.Handle("/v1/projects/", a.gate(http.HandlerFunc(a.handleProjectResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	var h http.Handler = a.mux
	if cfg.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, cfg.MaxBodyBytes)
	}
	if cfg.RateBurst > 0 && cfg.RatePerSecond > 0 {
		h = RateLimit(h, cfg.RateBurst, cfg.RatePerSecond)
	}
	a.handler = obs.Instrument(RequestID(LoggingJSON(SecurityHeaders(h))))

	return a
}

// Handler returns the fully wrapped http.Handler for the server. The chain
// is built once in New so the rate limiter's bucket state is shared across
// calls.
func (a *API) Handler() http.Handler {
	return a.handler
}

// --- health/info handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "girder-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "girder-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// writeDecodeError converts a decodeJSON failure into a response. Bodies
// rejected by the size cap get 413, everything else is a 400.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
