package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Len(t, c.All(), 22)
	assert.Equal(t, []string{"branches", "delivery", "finance", "kds", "menu", "orders", "reports", "staff"}, c.Modules())

	def, ok := c.Get(PermStaffPermissions)
	require.True(t, ok)
	assert.Equal(t, "staff", def.Module)

	assert.True(t, c.Has(PermOrdersRefund))
	assert.False(t, c.Has("orders.delete"))

	byModule := c.ByModule()
	assert.Len(t, byModule["orders"], 5)
	assert.Len(t, byModule["kds"], 2)
}

func TestCatalogSummarize(t *testing.T) {
	c := DefaultCatalog()
	stored := NewSet(PermOrdersView, PermOrdersCreate, PermKDSView)

	summaries := c.Summarize(stored)
	byModule := make(map[string]ModuleSummary, len(summaries))
	for _, s := range summaries {
		byModule[s.Module] = s
	}

	assert.Equal(t, 2, byModule["orders"].Granted)
	assert.Equal(t, 5, byModule["orders"].Total)
	assert.Equal(t, 1, byModule["kds"].Granted)
	assert.Equal(t, 0, byModule["menu"].Granted)
	// Every catalogue module is present even with zero grants.
	assert.Len(t, summaries, len(c.Modules()))
}

func TestDefaultSetsAreCatalogSubsets(t *testing.T) {
	c := DefaultCatalog()
	for _, role := range AllRoles() {
		defaults, ok := DefaultSet(role)
		require.True(t, ok, "role %s has no template", role)
		for key := range defaults {
			assert.True(t, c.Has(key), "role %s template holds unknown key %s", role, key)
		}
	}
}

func TestDefaultSetCashier(t *testing.T) {
	defaults, ok := DefaultSet(RoleCashier)
	require.True(t, ok)
	assert.True(t, defaults.Equal(NewSet(PermOrdersView, PermOrdersCreate)))

	// The legacy alias resolves to the same template.
	aliased, ok := DefaultSet("employee")
	require.True(t, ok)
	assert.True(t, aliased.Equal(defaults))
}

func TestDefaultSetUnknownRole(t *testing.T) {
	_, ok := DefaultSet("superuser")
	assert.False(t, ok)
}

func TestDefaultSetHierarchyMonotonicity(t *testing.T) {
	// Coordinator mirrors admin; branch manager is strictly wider than
	// cashier on the orders module.
	admin, _ := DefaultSet(RoleAdmin)
	coordinator, _ := DefaultSet(RoleCoordinator)
	assert.True(t, admin.Equal(coordinator))

	manager, _ := DefaultSet(RoleBranchManager)
	cashier, _ := DefaultSet(RoleCashier)
	for key := range cashier {
		assert.True(t, manager.Has(key), "branch manager missing cashier key %s", key)
	}
}
