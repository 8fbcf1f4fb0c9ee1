package identity

import "context"

// Principal is the opaque identifier of a signed-in identity. It is issued
// by the identity provider and stable for the lifetime of a session; the
// rest of the system treats it as an immutable input.
type Principal string

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// Key is the context key under which the request's Principal is stored.
	Key ContextKey = "principal"
)

// Get retrieves the Principal from context.
func Get(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(Key).(Principal)
	return p, ok && p != ""
}

// Set stores a Principal in context.
func Set(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, Key, p)
}
