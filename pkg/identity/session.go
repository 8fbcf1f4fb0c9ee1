package identity

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoSession is returned by RefreshSession when the request carries no
// usable session: no cookie, an expired cookie, or one that fails
// verification. Callers treat all of these as "not signed in".
var ErrNoSession = errors.New("identity: no valid session")

// EventKind classifies identity lifecycle events.
type EventKind int

const (
	EventSignIn EventKind = iota
	EventSignOut
	EventTokenRefresh
)

func (k EventKind) String() string {
	switch k {
	case EventSignIn:
		return "sign_in"
	case EventSignOut:
		return "sign_out"
	case EventTokenRefresh:
		return "token_refresh"
	}
	return "unknown"
}

// Event is a sign-in, sign-out, or token-refresh notification. Principal is
// empty for sign-out events.
type Event struct {
	Kind      EventKind
	Principal Principal
}

// SessionProvider abstracts the hosted identity backend. Implementations
// validate and rotate session cookies, report the currently signed-in
// principal, and publish identity lifecycle events.
type SessionProvider interface {
	// RefreshSession re-validates the session carried by cookies and returns
	// the authenticated principal together with any rotated cookies. The
	// rotated cookies must be propagated onto the outgoing response even when
	// the request is ultimately allowed through unchanged. ErrNoSession means
	// the caller is unauthenticated; any other error means the backend could
	// not be consulted and the caller must fail closed.
	RefreshSession(ctx context.Context, cookies []*http.Cookie) (Principal, []*http.Cookie, error)

	// CurrentPrincipal returns the principal of the locally tracked session,
	// if one is signed in.
	CurrentPrincipal(ctx context.Context) (Principal, bool)

	// Subscribe returns a channel of identity events and a cancel function
	// that releases the subscription.
	Subscribe() (<-chan Event, func())
}
