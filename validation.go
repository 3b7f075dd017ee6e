package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6
	// MaxPasswordBytes is the bcrypt input limit
	MaxPasswordBytes = 72

	msgInvalidEmail     = "Некорректный формат email"
	msgPasswordTooShort = "Пароль должен содержать минимум 6 символов"
	msgPasswordTooLong  = "Пароль слишком длинный: не более 72 байт"
	msgStudentCourse    = "Для студента необходимо указать курс"
	msgStudentGroup     = "Для студента необходимо указать группу"
	msgRefreshRequired  = "Refresh token обязателен"
)

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	FullName string `json:"full_name" form:"full_name"`
	Role     string `json:"role" form:"role"`
	Course   string `json:"course" form:"course"`
	Group    string `json:"group" form:"group"`
}

// Normalize trims the payload and defaults the role to student.
func (r RegisterRequest) Normalize() RegisterRequest {
	r.Email = normalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Role = strings.TrimSpace(r.Role)
	r.Course = strings.TrimSpace(r.Course)
	r.Group = strings.TrimSpace(r.Group)
	if r.Role == "" {
		r.Role = string(RoleStudent)
	}
	return r
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	r = r.Normalize()
	isStudent := r.Role == string(RoleStudent)

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error(msgInvalidEmail),
			is.EmailFormat.Error(msgInvalidEmail),
			validation.By(emailDomainRule),
		),
		validation.Field(&r.Password,
			validation.Required.Error(msgPasswordTooShort),
			validation.RuneLength(MinPasswordLength, 0).Error(msgPasswordTooShort),
			validation.By(passwordBytesRule),
		),
		validation.Field(&r.FullName, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&r.Role, validation.In(roleValues()...)),
		validation.Field(&r.Course, validation.When(isStudent, validation.Required.Error(msgStudentCourse))),
		validation.Field(&r.Group, validation.When(isStudent, validation.Required.Error(msgStudentGroup))),
	)
	if err != nil {
		return fromValidation(err, firstValidationMessage(err, "Некорректные данные регистрации"))
	}
	return nil
}

// User builds the pending record described by the payload. Course and
// group are kept only for students.
func (r RegisterRequest) User() *User {
	r = r.Normalize()
	user := &User{
		Email:    r.Email,
		FullName: r.FullName,
		Role:     UserRole(r.Role),
		Status:   UserStatusPending,
	}
	if user.IsStudent() {
		user.Course = stringPtr(r.Course)
		user.Group = stringPtr(r.Group)
	}
	return user
}

// LoginRequest holds the credentials of a login attempt
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (r LoginRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
	if err != nil {
		return fromValidation(err, "Email и пароль обязательны")
	}
	return nil
}

// RefreshRequest carries the refresh token to exchange
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// Validate will validate the payload
func (r RefreshRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required.Error(msgRefreshRequired)),
	)
	if err != nil {
		return fromValidation(err, msgRefreshRequired)
	}
	return nil
}

// LogoutRequest optionally carries the refresh token to revoke alongside
// the access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// StatusUpdateRequest is the admin status change payload
type StatusUpdateRequest struct {
	Status string `json:"status" form:"status"`
}

// Validate will validate the payload
func (r StatusUpdateRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Status,
			validation.Required,
			validation.In(
				string(UserStatusActive),
				string(UserStatusRejected),
				string(UserStatusBlocked),
			),
		),
	)
	if err != nil {
		return fromValidation(err, "Некорректный статус")
	}
	return nil
}

func emailDomainRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || !strings.Contains(s[at+1:], ".") {
		return errors.New(msgInvalidEmail)
	}
	return nil
}

func passwordBytesRule(value any) error {
	s, _ := value.(string)
	if len(s) > MaxPasswordBytes {
		return errors.New(msgPasswordTooLong)
	}
	return nil
}

func roleValues() []any {
	roles := GetAllRoles()
	out := make([]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

// firstValidationMessage returns the message of the first failing field,
// in form order.
func firstValidationMessage(err error, fallback string) string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return fallback
	}
	for _, field := range []string{"email", "password", "full_name", "role", "course", "group"} {
		if fieldErr, ok := errs[field]; ok && fieldErr != nil {
			return fieldErr.Error()
		}
	}
	return fallback
}
