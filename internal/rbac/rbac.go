package rbac

// Roles form a linear hierarchy: admin > manager > cashier. Permission checks
// are a static table lookup; they are deliberately separate from subscription
// gating, which is enforced after RBAC passes.

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

const (
	PermSalesCreate   = "sales:create"
	PermSalesSync     = "sales:sync"
	PermSalesRefund   = "sales:refund"
	PermProductsWrite = "products:write"
	PermReportsView   = "reports:view"
	PermBillingManage = "billing:manage"
	PermStaffManage   = "staff:manage"
)

var roleRank = map[string]int{
	RoleCashier: 1,
	RoleManager: 2,
	RoleAdmin:   3,
}

var rolePermissions = map[string][]string{
	RoleCashier: {
		PermSalesCreate,
		PermSalesSync,
	},
	RoleManager: {
		PermSalesCreate,
		PermSalesSync,
		PermSalesRefund,
		PermProductsWrite,
		PermReportsView,
	},
	RoleAdmin: {
		PermSalesCreate,
		PermSalesSync,
		PermSalesRefund,
		PermProductsWrite,
		PermReportsView,
		PermBillingManage,
		PermStaffManage,
	},
}

// HasPermission reports whether role is granted perm. Unknown roles have no
// permissions.
func HasPermission(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CanAccessRole reports whether userRole ranks at or above requiredRole.
// Unknown roles rank below everything.
func CanAccessRole(userRole, requiredRole string) bool {
	userRank, ok := roleRank[userRole]
	if !ok {
		return false
	}
	requiredRank, ok := roleRank[requiredRole]
	if !ok {
		return false
	}
	return userRank >= requiredRank
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}
