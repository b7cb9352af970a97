package auth

import "github.com/auditdesk/auditdesk/internal/models"

// Action is a privileged operation of the desk.
type Action string

const (
	ViewDashboard Action = "view_dashboard"
	CreateAudit   Action = "create_audit"
	ViewAllAudits Action = "view_all_audits"
	ViewReports   Action = "view_reports"
	ExportReports Action = "export_reports"
	ViewStores    Action = "view_stores"
	ManageStores  Action = "manage_stores"
	ViewUsers     Action = "view_users"
	ManageUsers   Action = "manage_users"
)

var capabilities = map[models.Role]map[Action]bool{
	models.RoleAdmin: {
		ViewDashboard: true, CreateAudit: true, ViewAllAudits: true,
		ViewReports: true, ExportReports: true, ViewStores: true,
		ManageStores: true, ViewUsers: true, ManageUsers: true,
	},
	models.RoleSupervisor: {
		ViewDashboard: true, CreateAudit: true, ViewAllAudits: true,
		ViewReports: true, ExportReports: true, ViewStores: true,
		ViewUsers: true,
	},
	models.RoleStoreManager: {
		ViewDashboard: true, CreateAudit: true, ViewStores: true,
	},
}

// Authorize reports whether p may perform a. Without a profile nothing is allowed.
func Authorize(p *models.Profile, a Action) bool {
	if p == nil {
		return false
	}
	return capabilities[p.Role][a]
}
