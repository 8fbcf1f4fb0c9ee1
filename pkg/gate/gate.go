// Package gate is the edge request gate: the per-request interceptor that
// decides allow or redirect before any protected content is produced. It is
// stateless across requests, always reads the role store live, and fails
// closed when either backend cannot be reached.
package gate

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/atelierforma/gatekeeper/pkg/audit"
	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
	"github.com/atelierforma/gatekeeper/pkg/store"
)

// Defaults for the redirect targets.
const (
	DefaultSignInPath = "/auth"
	DefaultSiteRoot   = "/"
	DefaultAdminRoot  = "/admin"
)

// DecisionKind says whether the request proceeds or is redirected.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionRedirect
)

func (k DecisionKind) String() string {
	if k == DecisionRedirect {
		return "redirect"
	}
	return "allow"
}

// Decision is the gate's verdict for one request. RotatedCookies must reach
// the response in every case, including allow.
type Decision struct {
	Kind           DecisionKind
	Location       string
	Principal      identity.Principal
	RotatedCookies []*http.Cookie

	// Reason is set on redirects, for audit and metrics.
	Reason string
}

// Recorder receives gate outcomes for metrics. Implementations must not
// block.
type Recorder interface {
	RecordDecision(outcome string)
}

// Gate evaluates every inbound request against the fixed rule table.
type Gate struct {
	sessions identity.SessionProvider
	roles    store.RoleStore
	log      *logrus.Entry

	// SignInPath, SiteRoot, and AdminRoot override the redirect targets.
	SignInPath string
	SiteRoot   string
	AdminRoot  string

	// Recorder is optional; when set it observes every decision.
	Recorder Recorder
}

// New creates a gate backed by the given session provider and role store.
func New(sessions identity.SessionProvider, roles store.RoleStore) *Gate {
	return &Gate{
		sessions:   sessions,
		roles:      roles,
		log:        logrus.WithField("component", "gate"),
		SignInPath: DefaultSignInPath,
		SiteRoot:   DefaultSiteRoot,
		AdminRoot:  DefaultAdminRoot,
	}
}

// Decide evaluates one request. It suspends at most twice: once to refresh
// the session and once for the role lookup, and skips the lookup entirely
// for unprotected paths.
func (g *Gate) Decide(ctx context.Context, path string, cookies []*http.Cookie) Decision {
	principal, rotated, err := g.sessions.RefreshSession(ctx, cookies)
	authenticated := err == nil && principal != ""
	if err != nil && !errors.Is(err, identity.ErrNoSession) {
		// Backend trouble: treat as unauthenticated for this request. The
		// next navigation re-attempts naturally.
		g.log.WithError(err).Warn("session refresh failed, failing closed")
		authenticated = false
	}

	rule, protected := Classify(path)
	if !protected {
		return g.record(Decision{Kind: DecisionAllow, Principal: principal, RotatedCookies: rotated})
	}

	if !authenticated {
		target := g.SignInPath + "?redirect=" + url.QueryEscape(path)
		return g.deny(path, "", Decision{
			Kind:           DecisionRedirect,
			Location:       target,
			RotatedCookies: rotated,
			Reason:         "unauthenticated",
		})
	}

	if rule.Requirement == RequireTrainer {
		active, err := g.roles.HasActiveTrainerRecord(ctx, principal)
		if err != nil {
			g.log.WithError(err).Warn("trainer lookup failed, failing closed")
			active = false
		}
		if !active {
			return g.deny(path, principal, Decision{
				Kind:           DecisionRedirect,
				Location:       g.SiteRoot,
				Principal:      principal,
				RotatedCookies: rotated,
				Reason:         "no_trainer_record",
			})
		}
		return g.record(Decision{Kind: DecisionAllow, Principal: principal, RotatedCookies: rotated})
	}

	// Admin namespace: always a live read, never the client cache. A
	// missing row is an ordinary user; a failed read is treated the same,
	// which can only deny, never grant.
	current, found, err := g.roles.GetRole(ctx, principal)
	if err != nil {
		g.log.WithError(err).Warn("role lookup failed, failing closed")
		current = role.RoleUser
	} else if !found {
		current = role.RoleUser
	}

	if !current.IsAdminClass() {
		return g.deny(path, principal, Decision{
			Kind:           DecisionRedirect,
			Location:       g.SiteRoot,
			Principal:      principal,
			RotatedCookies: rotated,
			Reason:         "not_admin_class",
		})
	}

	// Sub-rule violations send a legitimate admin-class user to the admin
	// root rather than the public site.
	switch rule.Requirement {
	case RequireSuperadmin:
		if current != role.RoleSuperadmin {
			return g.deny(path, principal, Decision{
				Kind:           DecisionRedirect,
				Location:       g.AdminRoot,
				Principal:      principal,
				RotatedCookies: rotated,
				Reason:         "superadmin_required",
			})
		}
	case RequireAdminOrAbove:
		if current != role.RoleSuperadmin && current != role.RoleAdmin {
			return g.deny(path, principal, Decision{
				Kind:           DecisionRedirect,
				Location:       g.AdminRoot,
				Principal:      principal,
				RotatedCookies: rotated,
				Reason:         "admin_required",
			})
		}
	}

	return g.record(Decision{Kind: DecisionAllow, Principal: principal, RotatedCookies: rotated})
}

// Middleware wraps next with the gate. Rotated session cookies are set on
// the response before any verdict is written.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r.Context(), r.URL.Path, r.Cookies())

		for _, c := range decision.RotatedCookies {
			http.SetCookie(w, c)
		}

		if decision.Kind == DecisionRedirect {
			http.Redirect(w, r, decision.Location, http.StatusFound)
			return
		}

		if decision.Principal != "" {
			r = r.WithContext(identity.Set(r.Context(), decision.Principal))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) record(d Decision) Decision {
	if g.Recorder != nil {
		g.Recorder.RecordDecision(d.Kind.String())
	}
	return d
}

func (g *Gate) deny(path string, principal identity.Principal, d Decision) Decision {
	if g.Recorder != nil {
		g.Recorder.RecordDecision(d.Reason)
	}
	audit.Log(audit.AccessEvent{
		Principal: string(principal),
		Path:      path,
		Allowed:   false,
		Reason:    d.Reason,
	})
	return d
}
