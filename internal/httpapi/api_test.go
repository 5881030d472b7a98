package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/girderhq/girder/internal/auth"
)

// stubStore is a map-backed auth.Store for handler tests.
type stubStore struct {
	mu        sync.Mutex
	users     map[string]*auth.User
	roles     map[string]*auth.Role
	rolePerms map[string][]auth.RolePermission
	projects  map[string]string
	members   map[string][]string
}

func newStubStore() *stubStore {
	return &stubStore{
		users:     make(map[string]*auth.User),
		roles:     make(map[string]*auth.Role),
		rolePerms: make(map[string][]auth.RolePermission),
		projects:  make(map[string]string),
		members:   make(map[string][]string),
	}
}

func (s *stubStore) Users(context.Context) auth.UserStore             { return stubUsers{s} }
func (s *stubStore) Roles(context.Context) auth.RoleStore             { return stubRoles{s} }
func (s *stubStore) Permissions(context.Context) auth.PermissionStore { return stubPerms{s} }
func (s *stubStore) Projects(context.Context) auth.ProjectStore       { return stubProjects{s} }

type stubUsers struct{ s *stubStore }

func (u stubUsers) Find(_ context.Context, id string) (*auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u stubUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

type stubRoles struct{ s *stubStore }

func (r stubRoles) Create(_ context.Context, role *auth.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if role.ID == "" {
		role.ID = "role-" + role.Name
	}
	r.s.roles[role.ID] = role
	return nil
}

func (r stubRoles) Find(_ context.Context, tenantID, roleID string) (*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return nil, auth.ErrNotFound
	}
	cp := *role
	cp.Permissions = append([]auth.RolePermission(nil), r.s.rolePerms[roleID]...)
	return &cp, nil
}

func (r stubRoles) ListByTenant(_ context.Context, tenantID string) ([]*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.Role
	for _, role := range r.s.roles {
		if role.TenantID == tenantID {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r stubRoles) Rename(_ context.Context, tenantID, roleID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return auth.ErrNotFound
	}
	role.Name = name
	return nil
}

func (r stubRoles) Delete(_ context.Context, tenantID, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return auth.ErrNotFound
	}
	delete(r.s.roles, roleID)
	return nil
}

func (r stubRoles) Assign(_ context.Context, userID, roleID string) error   { return nil }
func (r stubRoles) Unassign(_ context.Context, userID, roleID string) error { return nil }

type stubPerms struct{ s *stubStore }

func (p stubPerms) Ensure(context.Context, []string) error { return nil }

func (p stubPerms) SetForRole(_ context.Context, roleID string, entries []auth.RolePermission) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.rolePerms[roleID] = append([]auth.RolePermission(nil), entries...)
	return nil
}

type stubProjects struct{ s *stubStore }

func (p stubProjects) TenantOf(_ context.Context, projectID string) (string, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	tenantID, ok := p.s.projects[projectID]
	if !ok {
		return "", auth.ErrNotFound
	}
	return tenantID, nil
}

func (p stubProjects) MembershipsFor(_ context.Context, userID string) ([]string, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return append([]string(nil), p.s.members[userID]...), nil
}

func (p stubProjects) AddMember(_ context.Context, userID, projectID string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.members[userID] = append(p.s.members[userID], projectID)
	return nil
}

func (p stubProjects) RemoveMember(_ context.Context, userID, projectID string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	kept := p.s.members[userID][:0]
	for _, id := range p.s.members[userID] {
		if id != projectID {
			kept = append(kept, id)
		}
	}
	p.s.members[userID] = kept
	return nil
}

// fixture wires a full API over the stub store with a controllable clock.
type fixture struct {
	api   *API
	store *stubStore

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureConfig(t, Config{})
}

func newFixtureConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{store: newStubStore(), now: time.Now()}

	tokens, err := auth.NewTokenService("gate-test-secret", auth.WithClock(f.clock))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	blacklist := auth.NewMemoryBlacklist(auth.WithBlacklistClock(f.clock))
	sessions, err := auth.NewService(f.store, tokens, blacklist)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	rbac, err := auth.NewRBACService(f.store, auth.NewCatalog())
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}
	projects, err := auth.NewProjectAccess(f.store)
	if err != nil {
		t.Fatalf("NewProjectAccess: %v", err)
	}

	f.api = New(sessions, rbac, projects, cfg, ReadyProbe{}, "test")
	return f
}

func (f *fixture) seedUser(t *testing.T, id, username, password string, mutate func(*auth.User)) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &auth.User{
		ID:           id,
		TenantID:     "tenant-1",
		Username:     username,
		PasswordHash: hash,
		Active:       true,
	}
	if mutate != nil {
		mutate(user)
	}
	f.store.mu.Lock()
	f.store.users[user.ID] = user
	f.store.mu.Unlock()
	return user
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.api.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, username, password string) loginResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/v2/nothing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandlerRateLimitsPerClient(t *testing.T) {
	f := newFixtureConfig(t, Config{RateBurst: 2, RatePerSecond: 1})

	for i := 0; i < 2; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "198.51.100.7:4000"
	if rec := f.do(other); rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", rec.Code)
	}
}

func TestHandlerCapsRequestBody(t *testing.T) {
	f := newFixtureConfig(t, Config{MaxBodyBytes: 64})
	f.seedUser(t, "user-1", "dispatcher", "pw123456", nil)

	big := append([]byte(`{"username":"dispatcher","password":"`), bytes.Repeat([]byte("x"), 256)...)
	big = append(big, '"', '}')
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := f.login(t, "dispatcher", "pw123456")
	if resp.AccessToken == "" {
		t.Fatal("expected access token after a normal-sized login")
	}
}
