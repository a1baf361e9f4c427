package authz

// Role identifies a position in the fixed back-office hierarchy.
type Role string

// Roles from highest to lowest authority. The order is load-bearing:
// HighestRole picks the first match when iterating roleOrder.
const (
	RoleAdmin          Role = "admin"
	RoleCoordinator    Role = "coordinator"
	RolePartner        Role = "partner"
	RoleFranchisee     Role = "franchisee"
	RoleBranchManager  Role = "branch_manager"
	RoleCashier        Role = "cashier"
	RoleKitchenDisplay Role = "kitchen_display"
)

var roleOrder = []Role{
	RoleAdmin,
	RoleCoordinator,
	RolePartner,
	RoleFranchisee,
	RoleBranchManager,
	RoleCashier,
	RoleKitchenDisplay,
}

// Aliases left behind by earlier releases. They resolve to the same ordinal
// as their canonical role.
var roleAliases = map[Role]Role{
	"manager":  RoleBranchManager,
	"employee": RoleCashier,
}

// NormalizeRole maps legacy aliases to canonical roles. Unknown roles come
// back unchanged with ok=false.
func NormalizeRole(role Role) (Role, bool) {
	if canonical, ok := roleAliases[role]; ok {
		return canonical, true
	}
	for _, r := range roleOrder {
		if r == role {
			return r, true
		}
	}
	return role, false
}

// HighestRole returns the role with the most authority out of the given set,
// normalizing aliases first. ok is false when the set holds no known role.
func HighestRole(roles []Role) (Role, bool) {
	if len(roles) == 0 {
		return "", false
	}
	present := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		if canonical, ok := NormalizeRole(role); ok {
			present[canonical] = struct{}{}
		}
	}
	for _, r := range roleOrder {
		if _, ok := present[r]; ok {
			return r, true
		}
	}
	return "", false
}

// RoleRank returns the ordinal of a role, 0 being the highest authority.
// Unknown roles rank below every known role.
func RoleRank(role Role) int {
	canonical, ok := NormalizeRole(role)
	if !ok {
		return len(roleOrder)
	}
	for i, r := range roleOrder {
		if r == canonical {
			return i
		}
	}
	return len(roleOrder)
}

// AllRoles lists the canonical roles from highest to lowest.
func AllRoles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}
