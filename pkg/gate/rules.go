package gate

import "strings"

// Requirement is the role condition a protected route prefix imposes.
type Requirement int

const (
	// RequireAdminClass admits superadmin, admin, org_manager, moderator.
	RequireAdminClass Requirement = iota
	// RequireSuperadmin admits exactly superadmin.
	RequireSuperadmin
	// RequireAdminOrAbove admits superadmin and admin.
	RequireAdminOrAbove
	// RequireTrainer admits principals with an active trainer record.
	RequireTrainer
)

func (r Requirement) String() string {
	switch r {
	case RequireAdminClass:
		return "admin_class"
	case RequireSuperadmin:
		return "superadmin"
	case RequireAdminOrAbove:
		return "admin_or_above"
	case RequireTrainer:
		return "trainer"
	}
	return "unknown"
}

// Rule binds a literal path prefix to a requirement.
type Rule struct {
	Prefix      string
	Requirement Requirement
}

// Rules is the fixed ordered rule table. Order matters: the narrower admin
// sub-prefixes are listed before the namespace rules so the first match is
// the most specific one.
var Rules = []Rule{
	{"/admin/roles", RequireSuperadmin},
	{"/admin/security", RequireSuperadmin},
	{"/admin/redirects", RequireSuperadmin},
	{"/admin/cookies", RequireSuperadmin},
	{"/admin/users", RequireAdminOrAbove},
	{"/admin/settings", RequireAdminOrAbove},
	{"/admin/formateurs", RequireAdminOrAbove},
	{"/admin", RequireAdminClass},
	{"/formateur", RequireTrainer},
}

// Classify tests path against the rule table and returns the first matching
// rule. The second return is false for unprotected paths, which the gate
// must allow without a role lookup.
func Classify(path string) (Rule, bool) {
	for _, rule := range Rules {
		switch rule.Requirement {
		case RequireAdminClass, RequireTrainer:
			// Namespace rules match the prefix as a path segment, so
			// "/administration" stays public.
			if path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
				return rule, true
			}
		default:
			if strings.HasPrefix(path, rule.Prefix) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}
