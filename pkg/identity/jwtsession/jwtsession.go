// Package jwtsession implements identity.SessionProvider with signed
// session cookies. Tokens are HS256 JWTs with a sliding expiry: every
// successful refresh reissues the cookie, so an active session never
// presents the same token twice.
package jwtsession

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atelierforma/gatekeeper/pkg/identity"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "gk_session"

// DefaultTTL matches the identity backend's eight-hour session window.
const DefaultTTL = 8 * time.Hour

// Provider issues, validates, and rotates JWT session cookies, and tracks
// the locally signed-in principal for client-side consumers.
type Provider struct {
	secret     []byte
	ttl        time.Duration
	cookieName string

	mu      sync.Mutex
	current identity.Principal
	subs    map[int]chan identity.Event
	nextSub int
}

// New creates a Provider signing with secret. TTL of zero means DefaultTTL.
func New(secret []byte, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		secret:     secret,
		ttl:        ttl,
		cookieName: DefaultCookieName,
		subs:       make(map[int]chan identity.Event),
	}
}

// CookieName returns the name of the session cookie.
func (p *Provider) CookieName() string {
	return p.cookieName
}

// SignIn issues a session cookie for principal and publishes a sign-in
// event.
func (p *Provider) SignIn(ctx context.Context, principal identity.Principal) (*http.Cookie, error) {
	cookie, err := p.issue(principal)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = principal
	p.mu.Unlock()

	p.publish(identity.Event{Kind: identity.EventSignIn, Principal: principal})
	return cookie, nil
}

// SignOut clears the tracked session, publishes a sign-out event, and
// returns an expired cookie that removes the session from the client.
func (p *Provider) SignOut(ctx context.Context) *http.Cookie {
	p.mu.Lock()
	p.current = ""
	p.mu.Unlock()

	p.publish(identity.Event{Kind: identity.EventSignOut})

	return &http.Cookie{
		Name:     p.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
}

// RefreshSession validates the session cookie and reissues it with a fresh
// expiry. The rotated cookie is returned on every successful refresh and
// must reach the response regardless of the gate's decision.
func (p *Provider) RefreshSession(ctx context.Context, cookies []*http.Cookie) (identity.Principal, []*http.Cookie, error) {
	var raw string
	for _, c := range cookies {
		if c.Name == p.cookieName {
			raw = c.Value
			break
		}
	}
	if raw == "" {
		return "", nil, identity.ErrNoSession
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", nil, identity.ErrNoSession
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", nil, identity.ErrNoSession
	}

	principal := identity.Principal(sub)
	rotated, err := p.issue(principal)
	if err != nil {
		return "", nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	return principal, []*http.Cookie{rotated}, nil
}

// CurrentPrincipal returns the locally tracked principal, if signed in.
func (p *Provider) CurrentPrincipal(ctx context.Context) (identity.Principal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.current != ""
}

// Subscribe registers an identity event listener. The returned cancel
// function releases the subscription and closes the channel.
func (p *Provider) Subscribe() (<-chan identity.Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan identity.Event, 16)
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (p *Provider) issue(principal identity.Principal) (*http.Cookie, error) {
	now := time.Now()
	expiry := now.Add(p.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": string(principal),
		"iat": now.Unix(),
		"exp": expiry.Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &http.Cookie{
		Name:     p.cookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

func (p *Provider) publish(ev identity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		// Slow subscribers drop events rather than block sign-in/out.
		select {
		case ch <- ev:
		default:
		}
	}
}
