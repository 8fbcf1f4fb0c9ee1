// Package rolecache is the client-local, expiring cache of one principal's
// resolved role. It exists so the UI can paint with a plausible role before
// the first resolution round-trip completes; it carries no authority, and
// the request gate never reads it.
package rolecache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
)

// DefaultWindow is how long a cached role stays fresh. Minutes, not hours:
// a longer window risks painting stale elevated access after a demotion.
const DefaultWindow = 5 * time.Minute

// entry is the persisted record. The three fields form one atomic record,
// invalidated together, never independently.
type entry struct {
	Principal string    `json:"principal_id"`
	Role      string    `json:"role"`
	Expiry    time.Time `json:"expiry"`
}

// Cache stores at most one principal's role in a file so it survives a
// process restart. All invalidation is silent: a miss of any kind removes
// the record and reports absent.
type Cache struct {
	path   string
	window time.Duration
	now    func() time.Time
}

// New creates a cache persisted at path. A window of zero means
// DefaultWindow.
func New(path string, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{path: path, window: window, now: time.Now}
}

// Get returns the cached role only when the stored principal matches
// exactly and the record has not expired. Any mismatch, expiry, or decode
// failure clears the record.
func (c *Cache) Get(principal identity.Principal) (role.Role, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return role.RoleUnknown, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = c.Clear()
		return role.RoleUnknown, false
	}

	if e.Principal != string(principal) || !c.now().Before(e.Expiry) {
		_ = c.Clear()
		return role.RoleUnknown, false
	}

	r, err := role.RoleString(e.Role)
	if err != nil {
		_ = c.Clear()
		return role.RoleUnknown, false
	}
	return r, true
}

// Set overwrites the record for principal with expiry = now + window. The
// file is replaced atomically so readers never observe a partial record.
func (c *Cache) Set(principal identity.Principal, r role.Role) error {
	e := entry{
		Principal: string(principal),
		Role:      r.String(),
		Expiry:    c.now().Add(c.window),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Clear removes the record unconditionally. Called on sign-out.
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
