package auth

// roleHierarchy orders roles from least to most privileged. Each role is
// granted every capability of the roles below it.
var roleHierarchy = map[UserRole]int{
	RoleStudent:        0,
	RoleTeacher:        1,
	RoleDepartmentHead: 2,
	RoleAdmin:          3,
}

// RoleSet is the set of roles an operation accepts.
type RoleSet map[UserRole]struct{}

// Canonical access tiers. Handlers declare one of these instead of listing roles.
var (
	// TierAdmin admits admins only
	TierAdmin = AtLeast(RoleAdmin)
	// TierDepartmentHead admits admins and department heads
	TierDepartmentHead = AtLeast(RoleDepartmentHead)
	// TierTeacher admits teachers and everything above
	TierTeacher = AtLeast(RoleTeacher)
	// TierStudent admits every known role
	TierStudent = AtLeast(RoleStudent)
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level.
// Unknown roles never pass.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AtLeast builds the set of roles at or above minRole.
func AtLeast(minRole UserRole) RoleSet {
	set := RoleSet{}
	for role := range roleHierarchy {
		if role.IsAtLeast(minRole) {
			set[role] = struct{}{}
		}
	}
	return set
}

// Contains reports whether role is part of the set.
func (s RoleSet) Contains(role UserRole) bool {
	_, ok := s[role]
	return ok
}

// Roles returns the members of the set in hierarchical order.
func (s RoleSet) Roles() []UserRole {
	out := make([]UserRole, 0, len(s))
	for _, role := range GetAllRoles() {
		if s.Contains(role) {
			out = append(out, role)
		}
	}
	return out
}

// Authorize reports whether role may perform an operation requiring required.
// A nil set means the operation declares no role requirement; unknown roles
// are always denied.
func Authorize(role UserRole, required RoleSet) bool {
	if !role.IsValid() {
		return false
	}
	if required == nil {
		return true
	}
	return required.Contains(role)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleStudent,
		RoleTeacher,
		RoleDepartmentHead,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
