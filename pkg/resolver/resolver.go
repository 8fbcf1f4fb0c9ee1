// Package resolver determines a signed-in principal's role and
// organization memberships asynchronously, exactly once per sign-in event.
// It is the only writer of the role cache and the owner of the auth
// session object handed to UI code.
package resolver

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/atelierforma/gatekeeper/pkg/audit"
	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
	"github.com/atelierforma/gatekeeper/pkg/rolecache"
	"github.com/atelierforma/gatekeeper/pkg/store"
)

// State is the resolver's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// Snapshot is a consistent copy of the resolved state for one principal.
type Snapshot struct {
	State         State
	Principal     identity.Principal
	Role          role.Role
	Memberships   []store.OrganizationMembership
	CurrentOrg    string
	TrainerActive bool
	Profile       *store.Profile
}

// Recorder receives resolver outcomes for metrics. Implementations must not
// block.
type Recorder interface {
	RecordResolution(outcome string)
}

// Resolver runs the Idle -> Resolving -> Resolved state machine. A single
// in-flight guard ensures one store read sequence per (principal, sign-in)
// no matter how many duplicate triggers arrive, and a generation counter
// makes results that lost a race with sign-out provably inert.
type Resolver struct {
	roles  store.RoleStore
	cache  *rolecache.Cache
	policy RetryPolicy
	log    *logrus.Entry

	// Recorder is optional; when set it observes resolution outcomes.
	Recorder Recorder

	mu            sync.Mutex
	state         State
	principal     identity.Principal
	session       *role.Session
	memberships   []store.OrganizationMembership
	currentOrg    string
	trainerActive bool
	profile       *store.Profile

	resolving  bool
	generation uint64
	cancel     context.CancelFunc
}

// New creates a resolver reading from roles and writing through to cache.
func New(roles store.RoleStore, cache *rolecache.Cache, policy RetryPolicy) *Resolver {
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy
	}
	return &Resolver{
		roles:  roles,
		cache:  cache,
		policy: policy,
		state:  StateIdle,
		log:    logrus.WithField("component", "resolver"),
	}
}

// Run consumes identity events until ctx is done or the event channel
// closes. Sign-in and token-refresh events trigger resolution; sign-out
// tears everything down.
func (r *Resolver) Run(ctx context.Context, events <-chan identity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case identity.EventSignIn, identity.EventTokenRefresh:
				r.Trigger(ctx, ev.Principal)
			case identity.EventSignOut:
				r.SignOut()
			}
		}
	}
}

// Trigger starts an asynchronous resolution for principal. It is a no-op
// when a resolution for the same principal is already in flight or already
// complete; a different principal supersedes any previous work.
func (r *Resolver) Trigger(ctx context.Context, principal identity.Principal) {
	if principal == "" {
		return
	}

	r.mu.Lock()
	if r.principal == principal && (r.resolving || r.state == StateResolved) {
		r.mu.Unlock()
		return
	}

	// A new principal invalidates whatever was happening before.
	r.generation++
	gen := r.generation
	if r.cancel != nil {
		r.cancel()
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.principal = principal
	r.state = StateResolving
	r.resolving = true
	r.memberships = nil
	r.currentOrg = ""
	r.trainerActive = false
	r.profile = nil

	// Optimistic paint: a fresh cached role for this exact principal seeds
	// the session until the live resolution lands.
	seed := role.RoleUnknown
	if cached, ok := r.cache.Get(principal); ok {
		seed = cached
	}
	r.session = role.NewSession(seed)
	r.mu.Unlock()

	go r.resolve(attemptCtx, gen, principal)
}

// SignOut discards all derived state, cancels any in-flight resolution, and
// clears the role cache. A resolution that completes afterwards finds its
// generation stale and commits nothing.
func (r *Resolver) SignOut() {
	r.mu.Lock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.state = StateIdle
	r.principal = ""
	r.session = nil
	r.memberships = nil
	r.currentOrg = ""
	r.trainerActive = false
	r.profile = nil
	r.resolving = false
	r.mu.Unlock()

	if err := r.cache.Clear(); err != nil {
		r.log.WithError(err).Warn("failed to clear role cache on sign-out")
	}
}

// Session returns the auth session for the current principal, or nil when
// idle. UI code calls Effective() on it for display decisions.
func (r *Resolver) Session() *role.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Snapshot returns a copy of the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		State:         r.state,
		Principal:     r.principal,
		CurrentOrg:    r.currentOrg,
		TrainerActive: r.trainerActive,
		Profile:       r.profile,
	}
	if r.session != nil {
		snap.Role = r.session.Real()
	}
	if len(r.memberships) > 0 {
		snap.Memberships = make([]store.OrganizationMembership, len(r.memberships))
		copy(snap.Memberships, r.memberships)
	}
	return snap
}

func (r *Resolver) resolve(ctx context.Context, gen uint64, principal identity.Principal) {
	// The in-flight guard must drop on every exit path, success or failure,
	// but only if this attempt is still the current one.
	defer func() {
		r.mu.Lock()
		if r.generation == gen {
			r.resolving = false
		}
		r.mu.Unlock()
	}()

	var (
		resolved    role.Role
		found       bool
		roleErr     error
		memberships []store.OrganizationMembership
		memberErr   error
		trainer     bool
		trainerErr  error
		profile     *store.Profile
		profileErr  error
	)

	// The four reads are independent; issue them concurrently. Only the
	// role read carries the retry budget, and only its failure degrades the
	// resolution. Auxiliary reads surface as empty values.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roleErr = r.policy.Do(gctx, func(c context.Context) error {
			var err error
			resolved, found, err = r.roles.GetRole(c, principal)
			return err
		})
		return nil
	})
	g.Go(func() error {
		memberships, memberErr = r.roles.GetOrganizationMemberships(gctx, principal)
		return nil
	})
	g.Go(func() error {
		trainer, trainerErr = r.roles.HasActiveTrainerRecord(gctx, principal)
		return nil
	})
	g.Go(func() error {
		profile, profileErr = r.roles.GetProfile(gctx, principal)
		return nil
	})
	_ = g.Wait()

	degraded := false
	switch {
	case roleErr != nil:
		// Retry budget exhausted. Fail safe to the least-privileged
		// non-null role and stop retrying so the UI settles.
		resolved = role.RoleUser
		degraded = true
		r.log.WithError(roleErr).WithField("principal", string(principal)).
			Warn("role resolution degraded to user after retry")
	case !found:
		resolved = role.RoleUser
	}

	if memberErr != nil {
		r.log.WithError(memberErr).Warn("failed to read organization memberships")
		memberships = nil
	}
	if trainerErr != nil {
		r.log.WithError(trainerErr).Warn("failed to read trainer record")
		trainer = false
	}
	if profileErr != nil {
		r.log.WithError(profileErr).Warn("failed to read profile")
		profile = nil
	}

	// Organization context only applies to organization managers.
	currentOrg := ""
	if resolved == role.RoleOrgManager {
		currentOrg = selectCurrentOrg(memberships)
	} else {
		memberships = nil
	}

	r.mu.Lock()
	if r.generation != gen || ctx.Err() != nil {
		// A sign-out or a newer sign-in won the race; this result is inert.
		r.mu.Unlock()
		return
	}
	r.state = StateResolved
	r.session = role.NewSession(resolved)
	r.memberships = memberships
	r.currentOrg = currentOrg
	r.trainerActive = trainer
	r.profile = profile
	r.mu.Unlock()

	outcome := "resolved"
	if degraded {
		outcome = "degraded"
	} else if err := r.cache.Set(principal, resolved); err != nil {
		r.log.WithError(err).Warn("failed to write role cache")
	}

	if r.Recorder != nil {
		r.Recorder.RecordResolution(outcome)
	}
	audit.Log(audit.ResolveEvent{
		Principal: string(principal),
		Role:      resolved.String(),
		Degraded:  degraded,
	})
}

// selectCurrentOrg picks the primary membership if one is flagged, else the
// first returned.
func selectCurrentOrg(memberships []store.OrganizationMembership) string {
	for _, m := range memberships {
		if m.Primary {
			return m.Organization
		}
	}
	if len(memberships) > 0 {
		return memberships[0].Organization
	}
	return ""
}
