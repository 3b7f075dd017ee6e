package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleStudent can consume course content
	RoleStudent UserRole = "student"
	// RoleTeacher manages course content
	RoleTeacher UserRole = "teacher"
	// RoleDepartmentHead approves accounts and oversees teachers
	RoleDepartmentHead UserRole = "department_head"
	// RoleAdmin can do anything
	RoleAdmin UserRole = "admin"
)

// UserStatus is the lifecycle state of an account
type UserStatus string

const (
	// UserStatusPending is assigned on registration
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is the only status allowed to authenticate
	UserStatusActive UserStatus = "active"
	// UserStatusRejected is set when an admin declines a registration
	UserStatusRejected UserStatus = "rejected"
	// UserStatusBlocked is set by an administrative block
	UserStatusBlocked UserStatus = "blocked"
)

// User is the identity model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	FullName      string     `bun:"full_name,notnull" json:"full_name"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"role,notnull" json:"role"`
	Status        UserStatus `bun:"status,notnull" json:"status"`
	Course        *string    `bun:"course" json:"course"`
	Group         *string    `bun:"group_name" json:"group"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	ConfirmedAt   *time.Time `bun:"confirmed_at" json:"confirmed_at"`
	// ConfirmedBy references the approving identity by id only.
	ConfirmedBy *uuid.UUID `bun:"confirmed_by" json:"confirmed_by"`
}

// EnsureStatus defaults an unset status to pending.
func (u *User) EnsureStatus() {
	if u != nil && u.Status == "" {
		u.Status = UserStatusPending
	}
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// IsPending reports whether the account awaits approval.
func (u *User) IsPending() bool {
	return u != nil && u.Status == UserStatusPending
}

// IsStudent reports whether the user holds the student role.
func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent
}

// IsValid checks the status is one of the known values.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusRejected, UserStatusBlocked:
		return true
	default:
		return false
	}
}

// ParseStatus safely parses a string into a UserStatus.
func ParseStatus(raw string) (UserStatus, bool) {
	status := UserStatus(raw)
	return status, status.IsValid()
}

// Identity adapts a User to the identity attributes embedded in tokens.
func (u *User) Identity() Identity {
	return userIdentity{user: u}
}

type userIdentity struct {
	user *User
}

func (i userIdentity) ID() string {
	if i.user == nil {
		return ""
	}
	return i.user.ID.String()
}

func (i userIdentity) Email() string {
	if i.user == nil {
		return ""
	}
	return i.user.Email
}

func (i userIdentity) Role() string {
	if i.user == nil {
		return ""
	}
	return string(i.user.Role)
}

// stringPtr returns nil for blank values.
func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
