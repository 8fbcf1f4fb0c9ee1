package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path      string
		want      Requirement
		protected bool
	}{
		{"/", 0, false},
		{"/courses", 0, false},
		{"/courses/welding-101", 0, false},
		{"/auth", 0, false},
		{"/administration", 0, false},
		{"/formateurs", 0, false},

		{"/admin", RequireAdminClass, true},
		{"/admin/", RequireAdminClass, true},
		{"/admin/dashboard", RequireAdminClass, true},
		{"/admin/moderation/queue", RequireAdminClass, true},

		{"/admin/roles", RequireSuperadmin, true},
		{"/admin/roles/grant", RequireSuperadmin, true},
		{"/admin/security", RequireSuperadmin, true},
		{"/admin/redirects", RequireSuperadmin, true},
		{"/admin/cookies", RequireSuperadmin, true},

		{"/admin/users", RequireAdminOrAbove, true},
		{"/admin/users/42", RequireAdminOrAbove, true},
		{"/admin/settings", RequireAdminOrAbove, true},
		{"/admin/formateurs", RequireAdminOrAbove, true},

		{"/formateur", RequireTrainer, true},
		{"/formateur/sessions", RequireTrainer, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rule, protected := Classify(tt.path)
			assert.Equal(t, tt.protected, protected)
			if tt.protected {
				assert.Equal(t, tt.want, rule.Requirement)
			}
		})
	}
}

func TestClassify_SubRulesWinOverNamespace(t *testing.T) {
	// The narrower prefixes must be consulted before the /admin namespace
	// rule, or every sub-rule would collapse into admin-class.
	rule, protected := Classify("/admin/roles")
	assert.True(t, protected)
	assert.Equal(t, RequireSuperadmin, rule.Requirement)

	rule, protected = Classify("/admin/users")
	assert.True(t, protected)
	assert.Equal(t, RequireAdminOrAbove, rule.Requirement)
}
