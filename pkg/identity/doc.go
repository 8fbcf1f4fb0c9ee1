// Package identity defines the principal type, the session-provider
// boundary to the hosted identity backend, and the identity event stream
// consumed by the role resolver.
package identity
