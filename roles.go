package auth

// Role is the user's role
type Role string

const (
	// RoleUser is a regular storefront customer
	RoleUser Role = "USER"
	// RoleAdmin can manage the storefront
	RoleAdmin Role = "ADMIN"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role. Unknown values are
// rejected so a forged payload can never gate authorization.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}
