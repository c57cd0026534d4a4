package domain

// SubjectType differentiates users, staff and the service itself.
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "USER"
	SubjectTypeStaff  SubjectType = "STAFF"
	SubjectTypeSystem SubjectType = "SYSTEM"
)

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// Principal is the authenticated caller as carried by its access token.
type Principal struct {
	SubjectID      string
	Subject        SubjectType
	OrganizationID string
	Role           *StaffRole
}

// IsStaff reports whether the principal is an operator.
func (p Principal) IsStaff() bool {
	return p.Subject == SubjectTypeStaff
}

// HasRole reports whether a staff principal holds one of roles.
func (p Principal) HasRole(roles ...StaffRole) bool {
	if !p.IsStaff() || p.Role == nil {
		return false
	}
	for _, r := range roles {
		if *p.Role == r {
			return true
		}
	}
	return false
}
