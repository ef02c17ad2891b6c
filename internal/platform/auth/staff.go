package auth

import "strings"

// loginCodeSeparators are the characters that may end the role prefix of a
// structured staff login code such as "RMT-SI-0042".
const loginCodeSeparators = "-_."

// NormalizeBranch maps a free-form branch value onto SI, SL or ALL.
// Anything else becomes the empty string.
func NormalizeBranch(raw string) string {
	b := strings.ToUpper(strings.TrimSpace(raw))
	switch b {
	case BranchSI, BranchSL, BranchAll:
		return b
	}
	return ""
}

// ParseRolePrefix returns the staff role prefix. An explicit prefix from the
// session wins; otherwise the prefix is the part of the login code before
// its first separator. Codes without a separator yield no prefix.
func ParseRolePrefix(explicit, loginCode string) string {
	if p := strings.ToUpper(strings.TrimSpace(explicit)); p != "" {
		return p
	}
	code := strings.TrimSpace(loginCode)
	i := strings.IndexAny(code, loginCodeSeparators)
	if i <= 0 {
		return ""
	}
	return strings.ToUpper(code[:i])
}

// IsAdminRole reports whether a staff role/prefix pair grants admin rights.
func IsAdminRole(role, prefix string) bool {
	return strings.EqualFold(strings.TrimSpace(role), "admin") || prefix == "ADM"
}

// NewStaff converts a staff session into the closed Staff variant.
func NewStaff(s StaffSession) Staff {
	prefix := ParseRolePrefix(s.RolePrefix, s.LoginCode)
	role := strings.TrimSpace(s.Role)
	return Staff{
		ID:         s.ID,
		Role:       role,
		RolePrefix: prefix,
		Branch:     NormalizeBranch(s.Branch),
		Initials:   strings.TrimSpace(s.Initials),
		IsAdmin:    IsAdminRole(role, prefix),
	}
}
