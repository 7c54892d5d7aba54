package models

// Capability names an action checked at the HTTP boundary.
type Capability string

const (
	CapWorkOrdersRead   Capability = "workorders:read"
	CapWorkOrdersWrite  Capability = "workorders:write"
	CapWorkOrdersDelete Capability = "workorders:delete"
	CapReportsExport    Capability = "reports:export"
	CapUsersManage      Capability = "users:manage"
)

var technicianCapabilities = map[Capability]bool{
	CapWorkOrdersRead:  true,
	CapWorkOrdersWrite: true,
	CapReportsExport:   true,
}

var adminOnlyCapabilities = map[Capability]bool{
	CapWorkOrdersDelete: true,
	CapUsersManage:      true,
}

// HasCapability is the single authorization table. Admins hold every
// technician capability plus the admin-only ones.
func HasCapability(u *User, c Capability) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case RoleAdmin:
		return technicianCapabilities[c] || adminOnlyCapabilities[c]
	case RoleTechnician:
		return technicianCapabilities[c]
	default:
		return false
	}
}
