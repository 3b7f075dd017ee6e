package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/fenixedu/fenix-auth"
)

func TestUserRole_IsAtLeast(t *testing.T) {
	tests := []struct {
		role     auth.UserRole
		min      auth.UserRole
		expected bool
	}{
		{auth.RoleAdmin, auth.RoleStudent, true},
		{auth.RoleAdmin, auth.RoleAdmin, true},
		{auth.RoleDepartmentHead, auth.RoleTeacher, true},
		{auth.RoleTeacher, auth.RoleDepartmentHead, false},
		{auth.RoleStudent, auth.RoleTeacher, false},
		{auth.UserRole("owner"), auth.RoleStudent, false},
		{auth.RoleAdmin, auth.UserRole("owner"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+">="+string(tt.min), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.role.IsAtLeast(tt.min))
		})
	}
}

func TestTiers(t *testing.T) {
	assert.Equal(t, []auth.UserRole{auth.RoleAdmin}, auth.TierAdmin.Roles())
	assert.Equal(t, []auth.UserRole{auth.RoleDepartmentHead, auth.RoleAdmin}, auth.TierDepartmentHead.Roles())
	assert.Equal(t, []auth.UserRole{auth.RoleTeacher, auth.RoleDepartmentHead, auth.RoleAdmin}, auth.TierTeacher.Roles())
	assert.Equal(t, auth.GetAllRoles(), auth.TierStudent.Roles())
}

func TestAuthorize(t *testing.T) {
	assert.True(t, auth.Authorize(auth.RoleStudent, nil))
	assert.False(t, auth.Authorize(auth.UserRole("ghost"), nil))
	assert.False(t, auth.Authorize(auth.UserRole(""), auth.TierStudent))

	assert.True(t, auth.Authorize(auth.RoleDepartmentHead, auth.TierDepartmentHead))
	assert.False(t, auth.Authorize(auth.RoleDepartmentHead, auth.TierAdmin))
	assert.False(t, auth.Authorize(auth.RoleTeacher, auth.TierDepartmentHead))

	custom := auth.RoleSet{auth.RoleStudent: {}}
	assert.True(t, auth.Authorize(auth.RoleStudent, custom))
	assert.False(t, auth.Authorize(auth.RoleAdmin, custom))
}

func TestParseRole(t *testing.T) {
	role, ok := auth.ParseRole("department_head")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleDepartmentHead, role)

	_, ok = auth.ParseRole("Admin")
	assert.False(t, ok)
}
