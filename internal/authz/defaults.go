package authz

// roleDefaults maps each canonical role to its template permission set. The
// template only seeds or resets a user's stored set; access checks never read
// it. Changing a template never changes access already granted.
var roleDefaults = map[Role][]string{
	RoleAdmin: {
		PermOrdersView, PermOrdersCreate, PermOrdersUpdate, PermOrdersCancel, PermOrdersRefund,
		PermMenuView, PermMenuEdit, PermMenuPricing,
		PermStaffView, PermStaffEdit, PermStaffPermissions,
		PermReportsView, PermReportsFinance, PermReportsExport,
		PermDeliveryView, PermDeliveryZones,
		PermBranchesView, PermBranchesEdit,
		PermKDSView, PermKDSUpdate,
		PermFinanceView, PermFinanceExpenses,
	},
	RoleCoordinator: {
		PermOrdersView, PermOrdersCreate, PermOrdersUpdate, PermOrdersCancel, PermOrdersRefund,
		PermMenuView, PermMenuEdit, PermMenuPricing,
		PermStaffView, PermStaffEdit, PermStaffPermissions,
		PermReportsView, PermReportsFinance, PermReportsExport,
		PermDeliveryView, PermDeliveryZones,
		PermBranchesView, PermBranchesEdit,
		PermKDSView, PermKDSUpdate,
		PermFinanceView, PermFinanceExpenses,
	},
	RolePartner: {
		PermOrdersView, PermOrdersCancel, PermOrdersRefund,
		PermMenuView, PermMenuEdit, PermMenuPricing,
		PermStaffView, PermStaffEdit,
		PermReportsView, PermReportsFinance, PermReportsExport,
		PermDeliveryView, PermDeliveryZones,
		PermBranchesView, PermBranchesEdit,
		PermFinanceView,
	},
	RoleFranchisee: {
		PermOrdersView, PermOrdersCancel, PermOrdersRefund,
		PermMenuView, PermMenuEdit,
		PermStaffView, PermStaffEdit,
		PermReportsView, PermReportsFinance, PermReportsExport,
		PermDeliveryView, PermDeliveryZones,
		PermBranchesView,
		PermFinanceView, PermFinanceExpenses,
	},
	RoleBranchManager: {
		PermOrdersView, PermOrdersCreate, PermOrdersUpdate, PermOrdersCancel,
		PermMenuView,
		PermStaffView,
		PermReportsView,
		PermDeliveryView,
		PermBranchesView,
		PermKDSView, PermKDSUpdate,
		PermFinanceExpenses,
	},
	RoleCashier: {
		PermOrdersView, PermOrdersCreate,
	},
	RoleKitchenDisplay: {
		PermKDSView, PermKDSUpdate,
	},
}

// DefaultSet returns the template permission set for a role. ok is false for
// unknown roles after alias normalization.
func DefaultSet(role Role) (Set, bool) {
	canonical, ok := NormalizeRole(role)
	if !ok {
		return nil, false
	}
	keys, ok := roleDefaults[canonical]
	if !ok {
		return nil, false
	}
	return NewSet(keys...), true
}
