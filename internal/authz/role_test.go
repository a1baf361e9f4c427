package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoleAliases(t *testing.T) {
	tests := []struct {
		in   Role
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{"coordinator", RoleCoordinator, true},
		{"partner", RolePartner, true},
		{"franchisee", RoleFranchisee, true},
		{"branch_manager", RoleBranchManager, true},
		{"cashier", RoleCashier, true},
		{"kitchen_display", RoleKitchenDisplay, true},
		{"manager", RoleBranchManager, true},
		{"employee", RoleCashier, true},
		{"superuser", "superuser", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := NormalizeRole(tc.in)
		assert.Equal(t, tc.ok, ok, "role %q", tc.in)
		assert.Equal(t, tc.want, got, "role %q", tc.in)
	}
}

func TestHighestRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
		want  Role
		ok    bool
	}{
		{"single", []Role{"cashier"}, RoleCashier, true},
		{"picks highest", []Role{"cashier", "franchisee", "branch_manager"}, RoleFranchisee, true},
		{"admin wins", []Role{"kitchen_display", "admin"}, RoleAdmin, true},
		{"alias resolves before compare", []Role{"employee", "manager"}, RoleBranchManager, true},
		{"alias equals canonical", []Role{"manager", "branch_manager"}, RoleBranchManager, true},
		{"unknown ignored", []Role{"superuser", "cashier"}, RoleCashier, true},
		{"only unknown", []Role{"superuser"}, "", false},
		{"empty", nil, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := HighestRole(tc.roles)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRoleRankOrdering(t *testing.T) {
	roles := AllRoles()
	require.Len(t, roles, 7)
	for i := 1; i < len(roles); i++ {
		assert.Less(t, RoleRank(roles[i-1]), RoleRank(roles[i]),
			"%s must outrank %s", roles[i-1], roles[i])
	}

	// Aliases share the ordinal of their canonical role.
	assert.Equal(t, RoleRank(RoleBranchManager), RoleRank("manager"))
	assert.Equal(t, RoleRank(RoleCashier), RoleRank("employee"))

	// Unknown roles rank below everything.
	assert.Greater(t, RoleRank("superuser"), RoleRank(RoleKitchenDisplay))
}
