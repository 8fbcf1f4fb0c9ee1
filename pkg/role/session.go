package role

import "sync"

// Session holds the authorization state for one signed-in principal: the
// real role resolved from the store, and an optional simulated role an
// administrator can switch to for previewing the UI.
//
// The simulated role lives only in memory. It is never persisted, never
// written to the role cache, and never consulted by the request gate; it is
// a display filter, not a grant. The setter and the arbiter live on the same
// type so that the admin-only restriction cannot be bypassed by constructing
// one without the other.
type Session struct {
	mu        sync.RWMutex
	real      Role
	simulated Role
	simSet    bool
}

// NewSession creates a session for a principal whose real role is known.
func NewSession(real Role) *Session {
	return &Session{real: real}
}

// Real returns the role resolved from the store.
func (s *Session) Real() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.real
}

// SetSimulated switches the session to preview as r. It reports whether the
// override was accepted: only a real role of admin or superadmin may
// simulate, anything else is a silent no-op.
func (s *Session) SetSimulated(r Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.real.CanSimulate() {
		return false
	}
	s.simulated = r
	s.simSet = true
	return true
}

// ClearSimulated drops any active simulation.
func (s *Session) ClearSimulated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulated = RoleUnknown
	s.simSet = false
}

// Simulated returns the active simulated role, if any.
func (s *Session) Simulated() (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simulated, s.simSet
}

// Effective returns the role UI decisions should use: the simulated role
// when one is set and the real role is allowed to simulate, otherwise the
// real role. The CanSimulate check is repeated here so a session whose real
// role was downgraded after a simulation was set still arbitrates safely.
func (s *Session) Effective() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.simSet && s.real.CanSimulate() {
		return s.simulated
	}
	return s.real
}
