package role

//go:generate go run github.com/dmarkham/enumer -type Role -trimprefix Role -transform snake -output role.gen.go

// Role is the closed set of authorization labels a principal can hold.
// The zero value is RoleUnknown, meaning no resolution has happened yet;
// a principal with no role row is treated as RoleUser by the resolver
// and the request gate, never as RoleUnknown.
type Role int

const (
	RoleUnknown Role = iota
	RoleUser
	RoleClientManager
	RoleFormateur
	RoleModerator
	RoleOrgManager
	RoleAdmin
	RoleSuperadmin
)

// IsAdminClass reports whether the role is allowed into the /admin
// namespace at all.
func (i Role) IsAdminClass() bool {
	switch i {
	case RoleSuperadmin, RoleAdmin, RoleOrgManager, RoleModerator:
		return true
	}
	return false
}

// CanSimulate reports whether the role may preview the UI as a
// lower-privileged role.
func (i Role) CanSimulate() bool {
	return i == RoleAdmin || i == RoleSuperadmin
}
