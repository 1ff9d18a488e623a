package permissions

import "github.com/aipush/directory/internal/models"

const All = "all"

const (
	ToolsRead     = "tools:read"
	ToolsWrite    = "tools:write"
	UsersRead     = "users:read"
	UsersWrite    = "users:write"
	UsersDelete   = "users:delete"
	ContentRead   = "content:read"
	ContentWrite  = "content:write"
	AnalyticsRead = "analytics:read"
)

// RolePermissions is the single role→permission table. Services derive a
// user's stored permission set from here on create and on every role change.
func RolePermissions(role string) []string {
	switch role {
	case models.RoleAdmin:
		return []string{All}
	case models.RoleEditor:
		return []string{ToolsRead, ToolsWrite, AnalyticsRead, ContentRead, ContentWrite}
	case models.RoleViewer:
		return []string{ToolsRead, AnalyticsRead, ContentRead}
	default:
		return []string{}
	}
}

func ValidRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleEditor, models.RoleViewer:
		return true
	}
	return false
}

// Satisfies reports whether the user may perform an action requiring perm.
// Admins and the "all" wildcard satisfy every check.
func Satisfies(u *models.User, perm string) bool {
	if u == nil {
		return false
	}
	if u.Role == models.RoleAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == All || p == perm {
			return true
		}
	}
	return false
}
