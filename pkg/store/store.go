package store

import (
	"context"

	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
)

// OrgSubRole is the role a principal holds inside one organization.
type OrgSubRole string

const (
	OrgSubRoleManager OrgSubRole = "manager"
	OrgSubRoleViewer  OrgSubRole = "viewer"
)

// OrganizationMembership associates a principal with an organization. At
// most one membership per principal carries Primary = true.
type OrganizationMembership struct {
	Organization string
	SubRole      OrgSubRole
	Primary      bool
}

// Profile is the auxiliary display data fetched alongside the role.
type Profile struct {
	DisplayName string
	Email       string
}

// RoleStore abstracts the hosted database tables the gate and resolver
// read. All reads take a context so callers can bound or cancel them.
type RoleStore interface {
	// GetRole returns the principal's role. The boolean is false when no
	// role row exists, which callers must map to role.RoleUser.
	GetRole(ctx context.Context, principal identity.Principal) (role.Role, bool, error)

	// GetOrganizationMemberships returns the principal's organization
	// memberships, primary first.
	GetOrganizationMemberships(ctx context.Context, principal identity.Principal) ([]OrganizationMembership, error)

	// HasActiveTrainerRecord reports whether the principal has an active
	// trainer record, which gates the /formateur namespace.
	HasActiveTrainerRecord(ctx context.Context, principal identity.Principal) (bool, error)

	// GetProfile returns the principal's profile, or nil when absent.
	GetProfile(ctx context.Context, principal identity.Principal) (*Profile, error)

	// SetRole creates or replaces the principal's role row. Used by the
	// back-office CLI only; the core never writes roles.
	SetRole(ctx context.Context, principal identity.Principal, r role.Role) error

	// DeleteRole removes the principal's role row.
	DeleteRole(ctx context.Context, principal identity.Principal) error
}
