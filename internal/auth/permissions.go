package auth

import "github.com/valetpark/valetpark/internal/model"

// Permission names a single capability an operation may require.
type Permission string

const (
	PermViewReservations   Permission = "view_reservations"
	PermEditReservations   Permission = "edit_reservations"
	PermForceAccept        Permission = "force_accept"
	PermManageUsers        Permission = "manage_users"
	PermDeleteReservations Permission = "delete_reservations"
)

// PermissionTable maps each role to the set of permissions it holds.  The
// table is plain data loaded once at startup, not dispatched logic, so it
// can be inspected and tested in isolation.
type PermissionTable map[model.Role]map[Permission]bool

// DefaultPermissions returns the fixed role table: admins hold every
// permission, managers may force-accept over capacity but not manage
// accounts, operators may only view and edit reservations.
func DefaultPermissions() PermissionTable {
	return PermissionTable{
		model.RoleAdmin: {
			PermViewReservations:   true,
			PermEditReservations:   true,
			PermForceAccept:        true,
			PermManageUsers:        true,
			PermDeleteReservations: true,
		},
		model.RoleManager: {
			PermViewReservations: true,
			PermEditReservations: true,
			PermForceAccept:      true,
		},
		model.RoleOperator: {
			PermViewReservations: true,
			PermEditReservations: true,
		},
	}
}

// Allows reports whether the role holds the permission.  Unknown roles hold
// nothing.
func (t PermissionTable) Allows(role model.Role, perm Permission) bool {
	return t[role][perm]
}
