package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
	"github.com/atelierforma/gatekeeper/pkg/store"
)

// Ensure RoleStore implements store.RoleStore
var _ store.RoleStore = (*RoleStore)(nil)

// RoleStore implements store.RoleStore using GORM
type RoleStore struct {
	db *gorm.DB
}

// NewRoleStore creates a new RoleStore
func NewRoleStore(db *gorm.DB) *RoleStore {
	return &RoleStore{db: db}
}

// GetRole returns the principal's role, or found=false when no row exists
func (s *RoleStore) GetRole(ctx context.Context, principal identity.Principal) (role.Role, bool, error) {
	var value string
	res := s.db.WithContext(ctx).
		Raw(`SELECT role FROM user_roles WHERE principal_id = ?`, string(principal)).
		Scan(&value)
	if res.Error != nil {
		return role.RoleUnknown, false, fmt.Errorf("failed to read role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return role.RoleUnknown, false, nil
	}

	r, err := role.RoleString(value)
	if err != nil {
		return role.RoleUnknown, false, fmt.Errorf("malformed role %q for principal %s: %w", value, principal, err)
	}
	return r, true, nil
}

// GetOrganizationMemberships returns the principal's memberships, primary first
func (s *RoleStore) GetOrganizationMemberships(ctx context.Context, principal identity.Principal) ([]store.OrganizationMembership, error) {
	type membershipRow struct {
		OrganizationId string
		SubRole        string
		IsPrimary      bool
	}

	var rows []membershipRow
	res := s.db.WithContext(ctx).Raw(`
		SELECT organization_id, sub_role, is_primary
		FROM organization_memberships
		WHERE principal_id = ?
		ORDER BY is_primary DESC, organization_id
	`, string(principal)).Scan(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to read organization memberships: %w", res.Error)
	}

	memberships := make([]store.OrganizationMembership, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, store.OrganizationMembership{
			Organization: row.OrganizationId,
			SubRole:      store.OrgSubRole(row.SubRole),
			Primary:      row.IsPrimary,
		})
	}
	return memberships, nil
}

// HasActiveTrainerRecord reports whether an active trainer record exists
func (s *RoleStore) HasActiveTrainerRecord(ctx context.Context, principal identity.Principal) (bool, error) {
	var exists bool
	res := s.db.WithContext(ctx).
		Raw(`SELECT EXISTS(SELECT 1 FROM trainer_records WHERE principal_id = ? AND active)`, string(principal)).
		Scan(&exists)
	if res.Error != nil {
		return false, fmt.Errorf("failed to read trainer record: %w", res.Error)
	}
	return exists, nil
}

// GetProfile returns the principal's profile, or nil when absent
func (s *RoleStore) GetProfile(ctx context.Context, principal identity.Principal) (*store.Profile, error) {
	type profileRow struct {
		DisplayName string
		Email       string
	}

	var rows []profileRow
	res := s.db.WithContext(ctx).
		Raw(`SELECT display_name, email FROM profiles WHERE principal_id = ?`, string(principal)).
		Scan(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to read profile: %w", res.Error)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &store.Profile{DisplayName: rows[0].DisplayName, Email: rows[0].Email}, nil
}

// SetRole creates or replaces the principal's role row
func (s *RoleStore) SetRole(ctx context.Context, principal identity.Principal, r role.Role) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO user_roles (principal_id, role)
		VALUES (?, ?)
		ON CONFLICT (principal_id) DO UPDATE SET role = EXCLUDED.role
	`, string(principal), r.String()).Error
}

// DeleteRole removes the principal's role row
func (s *RoleStore) DeleteRole(ctx context.Context, principal identity.Principal) error {
	return s.db.WithContext(ctx).
		Exec(`DELETE FROM user_roles WHERE principal_id = ?`, string(principal)).Error
}
