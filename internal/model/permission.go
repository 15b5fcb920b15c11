package model

// Permission represents a string code for a specific admin action.
type Permission string

const (
	// PermissionQuestionsRead allows listing the bank with answers.
	PermissionQuestionsRead Permission = "questions:read"

	// PermissionQuestionsWrite allows adding, replacing, importing and deleting questions.
	PermissionQuestionsWrite Permission = "questions:write"

	// PermissionSettingsWrite allows changing the exam duration and passing threshold.
	PermissionSettingsWrite Permission = "settings:write"

	// PermissionStatsRead allows reading dashboard counters.
	PermissionStatsRead Permission = "stats:read"

	// PermissionResultsRead allows watching recorded results live.
	PermissionResultsRead Permission = "results:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionQuestionsRead,
	PermissionQuestionsWrite,
	PermissionSettingsWrite,
	PermissionStatsRead,
	PermissionResultsRead,
}

// AllPermissionCodes returns AllPermissions as plain strings.
func AllPermissionCodes() []string {
	codes := make([]string, len(AllPermissions))
	for i, p := range AllPermissions {
		codes[i] = string(p)
	}
	return codes
}
