package auth

import "github.com/cantina-pos/api/internal/enum"

// Permission identifies a single guarded capability. The set is closed:
// handlers check membership through RoleHasPermission, never by comparing
// role strings directly.
type Permission string

const (
	PermissionManageUsers        Permission = "users:manage"
	PermissionManageMenu         Permission = "menu:manage"
	PermissionManageTables       Permission = "tables:manage"
	PermissionTakeOrders         Permission = "orders:take"
	PermissionEditOrders         Permission = "orders:edit"
	PermissionVoidOrders         Permission = "orders:void"
	PermissionUpdateKitchen      Permission = "kitchen:update"
	PermissionProcessPayments    Permission = "payments:process"
	PermissionManageReservations Permission = "reservations:manage"
	PermissionManageSettings     Permission = "settings:manage"
	PermissionViewReports        Permission = "reports:view"
	PermissionViewAudit          Permission = "audit:view"
)

// rolePermissions is the static role -> permission table. OWNER is handled
// in RoleHasPermission and is not listed here.
var rolePermissions = map[string][]Permission{
	enum.UserRoleManager: {
		PermissionManageUsers,
		PermissionManageMenu,
		PermissionManageTables,
		PermissionTakeOrders,
		PermissionEditOrders,
		PermissionVoidOrders,
		PermissionUpdateKitchen,
		PermissionProcessPayments,
		PermissionManageReservations,
		PermissionManageSettings,
		PermissionViewReports,
		PermissionViewAudit,
	},
	enum.UserRoleCashier: {
		PermissionTakeOrders,
		PermissionEditOrders,
		PermissionProcessPayments,
		PermissionViewReports,
	},
	enum.UserRoleWaiter: {
		PermissionTakeOrders,
		PermissionEditOrders,
		PermissionManageReservations,
	},
	enum.UserRoleKitchen: {
		PermissionUpdateKitchen,
	},
}

// RoleHasPermission reports whether the given role grants the permission.
// OWNER holds every permission.
func RoleHasPermission(role string, p Permission) bool {
	if role == enum.UserRoleOwner {
		return true
	}
	for _, granted := range rolePermissions[role] {
		if granted == p {
			return true
		}
	}
	return false
}

// RolePermissions returns the permissions granted to a role.
func RolePermissions(role string) []Permission {
	if role == enum.UserRoleOwner {
		return AllPermissions()
	}
	return rolePermissions[role]
}

// AllPermissions returns every defined permission.
func AllPermissions() []Permission {
	return []Permission{
		PermissionManageUsers,
		PermissionManageMenu,
		PermissionManageTables,
		PermissionTakeOrders,
		PermissionEditOrders,
		PermissionVoidOrders,
		PermissionUpdateKitchen,
		PermissionProcessPayments,
		PermissionManageReservations,
		PermissionManageSettings,
		PermissionViewReports,
		PermissionViewAudit,
	}
}

// ValidRole reports whether the given string is a known role.
func ValidRole(role string) bool {
	switch role {
	case enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier,
		enum.UserRoleWaiter, enum.UserRoleKitchen:
		return true
	}
	return false
}

// Roles lists every known role.
func Roles() []string {
	return []string{
		enum.UserRoleOwner,
		enum.UserRoleManager,
		enum.UserRoleCashier,
		enum.UserRoleWaiter,
		enum.UserRoleKitchen,
	}
}
