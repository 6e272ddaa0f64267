package shared

// Permission scopes checked by the RBAC middleware.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermInventoryView   = "inventory.view"
	PermInventoryManage = "inventory.manage"
	PermInventoryPost   = "inventory.post"

	PermFinanceView    = "finance.view"
	PermFinanceRecord  = "finance.record"
	PermFinanceApprove = "finance.approve"

	PermProjectView   = "project.view"
	PermProjectManage = "project.manage"

	PermLaborView   = "labor.view"
	PermLaborRecord = "labor.record"

	PermDashboardView = "dashboard.view"

	PermAuditView = "audit.view"

	PermAdmin = "admin"
)

// AllScopes lists every permission the seed provisions.
func AllScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermInventoryView,
		PermInventoryManage,
		PermInventoryPost,
		PermFinanceView,
		PermFinanceRecord,
		PermFinanceApprove,
		PermProjectView,
		PermProjectManage,
		PermLaborView,
		PermLaborRecord,
		PermDashboardView,
		PermAuditView,
		PermAdmin,
	}
}
