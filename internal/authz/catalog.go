package authz

import "sort"

// Definition is an immutable permission catalogue entry. MinRole is the
// informational threshold shown in the admin UI; it is not enforced here.
type Definition struct {
	Key         string
	Module      string
	Name        string
	Description string
	MinRole     Role
}

// Catalog holds the permission definitions for the deployment. Read-only
// after construction.
type Catalog struct {
	defs     []Definition
	byKey    map[string]Definition
	byModule map[string][]Definition
	modules  []string
}

// NewCatalog indexes the given definitions preserving their order inside
// each module.
func NewCatalog(defs []Definition) *Catalog {
	c := &Catalog{
		defs:     make([]Definition, len(defs)),
		byKey:    make(map[string]Definition, len(defs)),
		byModule: make(map[string][]Definition),
	}
	copy(c.defs, defs)
	for _, d := range c.defs {
		c.byKey[d.Key] = d
		if _, seen := c.byModule[d.Module]; !seen {
			c.modules = append(c.modules, d.Module)
		}
		c.byModule[d.Module] = append(c.byModule[d.Module], d)
	}
	sort.Strings(c.modules)
	return c
}

// All returns every definition in catalogue order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Has reports whether key exists in the catalogue.
func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

// Get fetches a definition by key.
func (c *Catalog) Get(key string) (Definition, bool) {
	d, ok := c.byKey[key]
	return d, ok
}

// Modules lists module names sorted. A module with zero definitions simply
// does not appear; callers render missing modules as empty groups.
func (c *Catalog) Modules() []string {
	out := make([]string, len(c.modules))
	copy(out, c.modules)
	return out
}

// ByModule groups definitions per module.
func (c *Catalog) ByModule() map[string][]Definition {
	out := make(map[string][]Definition, len(c.byModule))
	for m, defs := range c.byModule {
		group := make([]Definition, len(defs))
		copy(group, defs)
		out[m] = group
	}
	return out
}

// ModuleSummary reports "granted N of M" per module for a stored set.
type ModuleSummary struct {
	Module  string
	Total   int
	Granted int
}

// Summarize computes per-module grant counts for display.
func (c *Catalog) Summarize(stored Set) []ModuleSummary {
	summaries := make([]ModuleSummary, 0, len(c.modules))
	for _, m := range c.modules {
		s := ModuleSummary{Module: m, Total: len(c.byModule[m])}
		for _, d := range c.byModule[m] {
			if stored.Has(d.Key) {
				s.Granted++
			}
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// Permission keys for the back-office modules.
const (
	PermOrdersView   = "orders.view"
	PermOrdersCreate = "orders.create"
	PermOrdersUpdate = "orders.update"
	PermOrdersCancel = "orders.cancel"
	PermOrdersRefund = "orders.refund"

	PermMenuView    = "menu.view"
	PermMenuEdit    = "menu.edit"
	PermMenuPricing = "menu.pricing"

	PermStaffView        = "staff.view"
	PermStaffEdit        = "staff.edit"
	PermStaffPermissions = "staff.permissions"

	PermReportsView    = "reports.view"
	PermReportsFinance = "reports.finance"
	PermReportsExport  = "reports.export"

	PermDeliveryView  = "delivery.view"
	PermDeliveryZones = "delivery.zones"

	PermBranchesView = "branches.view"
	PermBranchesEdit = "branches.edit"

	PermKDSView   = "kds.view"
	PermKDSUpdate = "kds.update"

	PermFinanceView     = "finance.view"
	PermFinanceExpenses = "finance.expenses"
)

// DefaultCatalog returns the catalogue seeded at deployment time.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Definition{
		{Key: PermOrdersView, Module: "orders", Name: "View orders", Description: "See the order list and order detail for the branch.", MinRole: RoleKitchenDisplay},
		{Key: PermOrdersCreate, Module: "orders", Name: "Create orders", Description: "Take new orders at the counter.", MinRole: RoleCashier},
		{Key: PermOrdersUpdate, Module: "orders", Name: "Update orders", Description: "Edit items and notes on open orders.", MinRole: RoleCashier},
		{Key: PermOrdersCancel, Module: "orders", Name: "Cancel orders", Description: "Void open orders before settlement.", MinRole: RoleBranchManager},
		{Key: PermOrdersRefund, Module: "orders", Name: "Refund orders", Description: "Refund settled orders.", MinRole: RoleFranchisee},

		{Key: PermMenuView, Module: "menu", Name: "View menu", Description: "Browse products and categories.", MinRole: RoleCashier},
		{Key: PermMenuEdit, Module: "menu", Name: "Edit menu", Description: "Add and edit products, categories and availability.", MinRole: RoleFranchisee},
		{Key: PermMenuPricing, Module: "menu", Name: "Manage pricing", Description: "Change prices and promotions.", MinRole: RolePartner},

		{Key: PermStaffView, Module: "staff", Name: "View staff", Description: "See the staff roster for the branch.", MinRole: RoleBranchManager},
		{Key: PermStaffEdit, Module: "staff", Name: "Edit staff", Description: "Add and deactivate staff accounts.", MinRole: RoleFranchisee},
		{Key: PermStaffPermissions, Module: "staff", Name: "Manage permissions", Description: "Edit per-branch permission grants for staff.", MinRole: RoleCoordinator},

		{Key: PermReportsView, Module: "reports", Name: "View reports", Description: "Open daily sales and operations reports.", MinRole: RoleBranchManager},
		{Key: PermReportsFinance, Module: "reports", Name: "Financial reports", Description: "Open revenue and settlement reports.", MinRole: RoleFranchisee},
		{Key: PermReportsExport, Module: "reports", Name: "Export reports", Description: "Download report data.", MinRole: RoleFranchisee},

		{Key: PermDeliveryView, Module: "delivery", Name: "View deliveries", Description: "Track delivery orders and couriers.", MinRole: RoleCashier},
		{Key: PermDeliveryZones, Module: "delivery", Name: "Manage zones", Description: "Edit delivery zone geometry and fees.", MinRole: RoleFranchisee},

		{Key: PermBranchesView, Module: "branches", Name: "View branches", Description: "See branch profiles.", MinRole: RoleBranchManager},
		{Key: PermBranchesEdit, Module: "branches", Name: "Edit branches", Description: "Edit branch profile, hours and contact data.", MinRole: RolePartner},

		{Key: PermKDSView, Module: "kds", Name: "View kitchen display", Description: "Open the kitchen display queue.", MinRole: RoleKitchenDisplay},
		{Key: PermKDSUpdate, Module: "kds", Name: "Update kitchen display", Description: "Bump and recall tickets on the kitchen display.", MinRole: RoleKitchenDisplay},

		{Key: PermFinanceView, Module: "finance", Name: "View finance", Description: "See settlements and cash counts.", MinRole: RoleFranchisee},
		{Key: PermFinanceExpenses, Module: "finance", Name: "Record expenses", Description: "Record branch expenses and petty cash.", MinRole: RoleBranchManager},
	})
}
