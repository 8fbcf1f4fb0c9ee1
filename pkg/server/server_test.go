package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierforma/gatekeeper/pkg/config"
	"github.com/atelierforma/gatekeeper/pkg/gate"
	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/identity/jwtsession"
	"github.com/atelierforma/gatekeeper/pkg/resolver"
	"github.com/atelierforma/gatekeeper/pkg/role"
	"github.com/atelierforma/gatekeeper/pkg/rolecache"
	"github.com/atelierforma/gatekeeper/pkg/store"
)

// memoryStore is an in-memory RoleStore for endpoint tests.
type memoryStore struct {
	mu       sync.Mutex
	roles    map[identity.Principal]role.Role
	trainers map[identity.Principal]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		roles:    make(map[identity.Principal]role.Role),
		trainers: make(map[identity.Principal]bool),
	}
}

func (s *memoryStore) GetRole(ctx context.Context, principal identity.Principal) (role.Role, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, found := s.roles[principal]
	return r, found, nil
}

func (s *memoryStore) GetOrganizationMemberships(ctx context.Context, principal identity.Principal) ([]store.OrganizationMembership, error) {
	return nil, nil
}

func (s *memoryStore) HasActiveTrainerRecord(ctx context.Context, principal identity.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trainers[principal], nil
}

func (s *memoryStore) GetProfile(ctx context.Context, principal identity.Principal) (*store.Profile, error) {
	return nil, nil
}

func (s *memoryStore) SetRole(ctx context.Context, principal identity.Principal, r role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[principal] = r
	return nil
}

func (s *memoryStore) DeleteRole(ctx context.Context, principal identity.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, principal)
	return nil
}

type testHarness struct {
	server   *Server
	backend  *memoryStore
	sessions *jwtsession.Provider
	resolver *resolver.Resolver
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	backend := newMemoryStore()
	sessions := jwtsession.New([]byte("test-secret"), time.Hour)

	cache := rolecache.New(filepath.Join(t.TempDir(), "role-cache.json"), 5*time.Minute)
	res := resolver.New(backend, cache, resolver.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond})

	contentDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "index.md"), []byte("# Welcome\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "admin.md"), []byte("# Back office\n"), 0o600))

	cfg := &config.Config{
		SignInPath: "/auth",
		SiteRoot:   "/",
		AdminRoot:  "/admin",
		ContentDir: contentDir,
	}

	g := gate.New(sessions, backend)

	s := NewServer(sessions, backend, g, res, cfg, "127.0.0.1", "0")
	RegisterAll(s)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events, unsubscribe := sessions.Subscribe()
	t.Cleanup(unsubscribe)
	go res.Run(ctx, events)

	return &testHarness{server: s, backend: backend, sessions: sessions, resolver: res}
}

func (h *testHarness) signIn(t *testing.T, principal string) *http.Cookie {
	t.Helper()

	form := url.Values{"principal": {principal}}
	req := httptest.NewRequest("POST", "/auth/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func (h *testHarness) waitResolved(t *testing.T, principal string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := h.resolver.Snapshot()
		return snap.State == resolver.StateResolved && snap.Principal == identity.Principal(principal)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSignIn_RedirectsToRequestedPath(t *testing.T) {
	h := newTestHarness(t)

	form := url.Values{"principal": {"alice"}, "redirect": {"/admin/users"}}
	req := httptest.NewRequest("POST", "/auth/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/users", rec.Header().Get("Location"))
}

func TestSignIn_RejectsExternalRedirect(t *testing.T) {
	h := newTestHarness(t)

	form := url.Values{"principal": {"alice"}, "redirect": {"https://evil.example"}}
	req := httptest.NewRequest("POST", "/auth/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestSignIn_RequiresPrincipal(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest("POST", "/auth/sign-in", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe_RequiresSession(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest("GET", "/me", nil)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_ReportsResolvedRole(t *testing.T) {
	h := newTestHarness(t)
	h.backend.roles["alice"] = role.RoleAdmin

	cookie := h.signIn(t, "alice")
	h.waitResolved(t, "alice")

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp MeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Principal)
	assert.Equal(t, "resolved", resp.State)
	assert.Equal(t, "admin", resp.Role)
	assert.Equal(t, "admin", resp.EffectiveRole)
}

func TestSimulate_AdminPreviewsAsUser(t *testing.T) {
	h := newTestHarness(t)
	h.backend.roles["alice"] = role.RoleAdmin

	cookie := h.signIn(t, "alice")
	h.waitResolved(t, "alice")

	body := strings.NewReader(`{"role":"user"}`)
	req := httptest.NewRequest("POST", "/me/simulate", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "admin", resp["role"])
	assert.Equal(t, "user", resp["effective_role"])

	// The real role still gates /admin: simulation is display-only.
	adminReq := httptest.NewRequest("GET", "/admin", nil)
	adminReq.AddCookie(cookie)
	adminRec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(adminRec, adminReq)
	assert.Equal(t, http.StatusOK, adminRec.Code)
}

func TestSimulate_ModeratorForbidden(t *testing.T) {
	h := newTestHarness(t)
	h.backend.roles["mona"] = role.RoleModerator

	cookie := h.signIn(t, "mona")
	h.waitResolved(t, "mona")

	req := httptest.NewRequest("POST", "/me/simulate", strings.NewReader(`{"role":"user"}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSimulate_ClearRestoresRealRole(t *testing.T) {
	h := newTestHarness(t)
	h.backend.roles["alice"] = role.RoleSuperadmin

	cookie := h.signIn(t, "alice")
	h.waitResolved(t, "alice")

	req := httptest.NewRequest("POST", "/me/simulate", strings.NewReader(`{"role":"formateur"}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	clearReq := httptest.NewRequest("DELETE", "/me/simulate", nil)
	clearReq.AddCookie(cookie)
	clearRec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(clearRec, clearReq)
	require.Equal(t, http.StatusOK, clearRec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(clearRec.Body).Decode(&resp))
	assert.Equal(t, "superadmin", resp["effective_role"])
}

func TestGateOnRouter_AnonymousAdminRedirect(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest("GET", "/admin/users", nil)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth?redirect=%2Fadmin%2Fusers", rec.Header().Get("Location"))
}

func TestGateOnRouter_UserBouncedFromAdmin(t *testing.T) {
	h := newTestHarness(t)
	h.backend.roles["bob"] = role.RoleUser

	cookie := h.signIn(t, "bob")

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPages_RendersMarkdown(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1")
	assert.Contains(t, rec.Body.String(), "Welcome")
}

func TestPages_MissingPageIs404(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest("GET", "/no-such-page", nil)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignOut_ClearsSessionAndResolver(t *testing.T) {
	h := newTestHarness(t)
	h.backend.roles["alice"] = role.RoleAdmin

	cookie := h.signIn(t, "alice")
	h.waitResolved(t, "alice")

	req := httptest.NewRequest("POST", "/auth/sign-out", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.server.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)

	require.Eventually(t, func() bool {
		return h.resolver.Snapshot().State == resolver.StateIdle
	}, 2*time.Second, 5*time.Millisecond)
}
