// Package store defines the role-store boundary: the queryable tables
// mapping principals to roles, organization memberships, trainer records,
// and profiles. Implementations live in subpackages.
package store
