package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
	"github.com/atelierforma/gatekeeper/pkg/rolecache"
	"github.com/atelierforma/gatekeeper/pkg/store"
)

// stubStore is a controllable in-memory RoleStore.
type stubStore struct {
	mu           sync.Mutex
	roles        map[identity.Principal]role.Role
	roleErr      error
	memberships  []store.OrganizationMembership
	trainer      bool
	profile      *store.Profile
	getRoleCalls int

	// block, when non-nil, makes GetRole wait until it is closed.
	block chan struct{}
}

func newStubStore() *stubStore {
	return &stubStore{roles: make(map[identity.Principal]role.Role)}
}

func (s *stubStore) GetRole(ctx context.Context, principal identity.Principal) (role.Role, bool, error) {
	s.mu.Lock()
	s.getRoleCalls++
	block := s.block
	err := s.roleErr
	r, found := s.roles[principal]
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return role.RoleUnknown, false, ctx.Err()
		}
	}
	if err != nil {
		return role.RoleUnknown, false, err
	}
	return r, found, nil
}

func (s *stubStore) GetOrganizationMemberships(ctx context.Context, principal identity.Principal) ([]store.OrganizationMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberships, nil
}

func (s *stubStore) HasActiveTrainerRecord(ctx context.Context, principal identity.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trainer, nil
}

func (s *stubStore) GetProfile(ctx context.Context, principal identity.Principal) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, nil
}

func (s *stubStore) SetRole(ctx context.Context, principal identity.Principal, r role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[principal] = r
	return nil
}

func (s *stubStore) DeleteRole(ctx context.Context, principal identity.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, principal)
	return nil
}

func (s *stubStore) roleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRoleCalls
}

func newTestCache(t *testing.T) *rolecache.Cache {
	t.Helper()
	return rolecache.New(filepath.Join(t.TempDir(), "role-cache.json"), 5*time.Minute)
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}
}

func waitResolved(t *testing.T, r *Resolver) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Snapshot().State == StateResolved
	}, 2*time.Second, 5*time.Millisecond)
	return r.Snapshot()
}

func TestResolver_ResolvesRole(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleAdmin
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "alice")

	snap := waitResolved(t, r)
	assert.Equal(t, role.RoleAdmin, snap.Role)
	assert.Equal(t, identity.Principal("alice"), snap.Principal)

	cached, ok := cache.Get("alice")
	assert.True(t, ok)
	assert.Equal(t, role.RoleAdmin, cached)
}

func TestResolver_MissingRowIsUser(t *testing.T) {
	backend := newStubStore()
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "nobody")

	snap := waitResolved(t, r)
	assert.Equal(t, role.RoleUser, snap.Role)

	// A genuinely resolved "user" is cacheable.
	cached, ok := cache.Get("nobody")
	assert.True(t, ok)
	assert.Equal(t, role.RoleUser, cached)
}

func TestResolver_DuplicateTriggersReadOnce(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleModerator
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	ctx := context.Background()
	r.Trigger(ctx, "alice")
	r.Trigger(ctx, "alice")
	r.Trigger(ctx, "alice")

	waitResolved(t, r)

	// Re-triggering after completion is also inert.
	r.Trigger(ctx, "alice")
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, backend.roleCalls())
}

func TestResolver_DegradesToUserAfterRetries(t *testing.T) {
	backend := newStubStore()
	backend.roleErr = errors.New("backend down")
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "alice")

	snap := waitResolved(t, r)
	assert.Equal(t, role.RoleUser, snap.Role)
	assert.Equal(t, 2, backend.roleCalls(), "retry budget is exactly two attempts")

	// A degraded role is a placeholder, never cached.
	_, ok := cache.Get("alice")
	assert.False(t, ok)
}

func TestResolver_RetryRecoversTransientFailure(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleFormateur
	backend.roleErr = errors.New("transient")
	cache := newTestCache(t)

	r := New(backend, cache, RetryPolicy{MaxAttempts: 2, Delay: 10 * time.Millisecond})

	// Clear the failure before the second attempt fires.
	go func() {
		time.Sleep(5 * time.Millisecond)
		backend.mu.Lock()
		backend.roleErr = nil
		backend.mu.Unlock()
	}()

	r.Trigger(context.Background(), "alice")

	snap := waitResolved(t, r)
	assert.Equal(t, role.RoleFormateur, snap.Role)
	assert.Equal(t, 2, backend.roleCalls())
}

func TestResolver_SignOutDiscardsEverything(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleAdmin
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "alice")
	waitResolved(t, r)

	r.SignOut()

	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Principal)
	assert.Nil(t, r.Session())

	_, ok := cache.Get("alice")
	assert.False(t, ok, "sign-out clears the cache")
}

func TestResolver_LateResultAfterSignOutIsInert(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleSuperadmin
	backend.block = make(chan struct{})
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "alice")

	// Sign out while the role read is still in flight, then let it finish.
	r.SignOut()
	close(backend.block)

	time.Sleep(50 * time.Millisecond)

	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, role.RoleUnknown, snap.Role)

	_, ok := cache.Get("alice")
	assert.False(t, ok, "a result that lost the race must not repopulate the cache")
}

func TestResolver_NewPrincipalSupersedes(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleAdmin
	backend.roles["bob"] = role.RoleUser
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	ctx := context.Background()
	r.Trigger(ctx, "alice")
	r.Trigger(ctx, "bob")

	require.Eventually(t, func() bool {
		snap := r.Snapshot()
		return snap.State == StateResolved && snap.Principal == "bob"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, role.RoleUser, r.Snapshot().Role)
}

func TestResolver_OrgManagerGetsPrimaryOrg(t *testing.T) {
	backend := newStubStore()
	backend.roles["carol"] = role.RoleOrgManager
	backend.memberships = []store.OrganizationMembership{
		{Organization: "org-a", SubRole: store.OrgSubRoleViewer},
		{Organization: "org-b", SubRole: store.OrgSubRoleManager, Primary: true},
	}
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "carol")

	snap := waitResolved(t, r)
	assert.Equal(t, "org-b", snap.CurrentOrg)
	assert.Len(t, snap.Memberships, 2)
}

func TestResolver_OrgManagerFallsBackToFirstOrg(t *testing.T) {
	backend := newStubStore()
	backend.roles["carol"] = role.RoleOrgManager
	backend.memberships = []store.OrganizationMembership{
		{Organization: "org-a", SubRole: store.OrgSubRoleViewer},
		{Organization: "org-b", SubRole: store.OrgSubRoleManager},
	}
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "carol")

	snap := waitResolved(t, r)
	assert.Equal(t, "org-a", snap.CurrentOrg)
}

func TestResolver_NonOrgManagerHasNoOrgContext(t *testing.T) {
	backend := newStubStore()
	backend.roles["dave"] = role.RoleAdmin
	backend.memberships = []store.OrganizationMembership{
		{Organization: "org-a", SubRole: store.OrgSubRoleManager, Primary: true},
	}
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "dave")

	snap := waitResolved(t, r)
	assert.Empty(t, snap.CurrentOrg)
	assert.Empty(t, snap.Memberships)
}

func TestResolver_CachedRoleSeedsSession(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleAdmin
	backend.block = make(chan struct{})
	cache := newTestCache(t)
	require.NoError(t, cache.Set("alice", role.RoleAdmin))

	r := New(backend, cache, fastPolicy())
	r.Trigger(context.Background(), "alice")

	// While the live read is blocked, the session already paints the
	// cached role.
	session := r.Session()
	require.NotNil(t, session)
	assert.Equal(t, role.RoleAdmin, session.Real())
	assert.Equal(t, StateResolving, r.Snapshot().State)

	close(backend.block)
	waitResolved(t, r)
}

func TestResolver_RunConsumesEvents(t *testing.T) {
	backend := newStubStore()
	backend.roles["alice"] = role.RoleModerator
	cache := newTestCache(t)

	r := New(backend, cache, fastPolicy())

	events := make(chan identity.Event)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, events)

	events <- identity.Event{Kind: identity.EventSignIn, Principal: "alice"}
	waitResolved(t, r)

	events <- identity.Event{Kind: identity.EventSignOut}
	require.Eventually(t, func() bool {
		return r.Snapshot().State == StateIdle
	}, 2*time.Second, 5*time.Millisecond)
}
