package models

// Permission names carried in JWT claims, in "resource:action" form.
const (
	PermProfileSelf    = "profiles:self"
	PermProfileManage  = "profiles:manage"
	PermProfileVerify  = "profiles:verify"
	PermMessageRead    = "messages:read"
	PermMessageSend    = "messages:send"
	PermStatsRead      = "stats:read"
	PermCampaignManage = "campaigns:manage"
	PermAuditRead      = "audit:read"
)

// StaffPermissions is the full set granted to staff users.
func StaffPermissions() []string {
	return []string{
		PermProfileSelf,
		PermProfileManage,
		PermProfileVerify,
		PermMessageRead,
		PermMessageSend,
		PermStatsRead,
		PermCampaignManage,
		PermAuditRead,
	}
}
