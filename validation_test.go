package auth_test

import (
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/fenixedu/fenix-auth"
)

func validStudent() auth.RegisterRequest {
	return auth.RegisterRequest{
		Email:    "Student@FenixEdu.ru ",
		Password: "secret1",
		FullName: " Иван Петров ",
		Course:   "2",
		Group:    "ИВТ-21",
	}
}

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *auth.RegisterRequest)
		message string
		field   string
	}{
		{name: "valid student", mutate: func(r *auth.RegisterRequest) {}},
		{
			name:   "teacher without course",
			mutate: func(r *auth.RegisterRequest) { r.Role = "teacher"; r.Course = ""; r.Group = "" },
		},
		{
			name:   "cyrillic password of six runes",
			mutate: func(r *auth.RegisterRequest) { r.Password = "пароль" },
		},
		{
			name:    "missing email",
			mutate:  func(r *auth.RegisterRequest) { r.Email = "" },
			message: "Некорректный формат email",
			field:   "email",
		},
		{
			name:    "malformed email",
			mutate:  func(r *auth.RegisterRequest) { r.Email = "not-an-email" },
			message: "Некорректный формат email",
			field:   "email",
		},
		{
			name:    "short password",
			mutate:  func(r *auth.RegisterRequest) { r.Password = "12345" },
			message: "Пароль должен содержать минимум 6 символов",
			field:   "password",
		},
		{
			name:   "cyrillic password at the byte limit",
			mutate: func(r *auth.RegisterRequest) { r.Password = strings.Repeat("я", 36) },
		},
		{
			name:    "cyrillic password over the byte limit",
			mutate:  func(r *auth.RegisterRequest) { r.Password = strings.Repeat("пароль", 7) },
			message: "Пароль слишком длинный: не более 72 байт",
			field:   "password",
		},
		{
			name:    "student without course",
			mutate:  func(r *auth.RegisterRequest) { r.Course = " " },
			message: "Для студента необходимо указать курс",
			field:   "course",
		},
		{
			name:    "student without group",
			mutate:  func(r *auth.RegisterRequest) { r.Group = "" },
			message: "Для студента необходимо указать группу",
			field:   "group",
		},
		{
			name:   "unknown role",
			mutate: func(r *auth.RegisterRequest) { r.Role = "root" },
			field:  "role",
		},
		{
			name:    "email reported before password",
			mutate:  func(r *auth.RegisterRequest) { r.Email = "bad"; r.Password = "1" },
			message: "Некорректный формат email",
			field:   "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validStudent()
			tt.mutate(&req)

			err := req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrValidation)
			assert.Equal(t, auth.KindValidation, auth.KindOf(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, messageOf(err))
			}

			var rich *goerrors.Error
			require.True(t, goerrors.As(err, &rich))
			assert.Contains(t, rich.ValidationMap(), tt.field)
		})
	}
}

func TestRegisterRequest_User(t *testing.T) {
	user := validStudent().User()
	assert.Equal(t, "student@fenixedu.ru", user.Email)
	assert.Equal(t, "Иван Петров", user.FullName)
	assert.Equal(t, auth.RoleStudent, user.Role)
	assert.Equal(t, auth.UserStatusPending, user.Status)
	require.NotNil(t, user.Course)
	assert.Equal(t, "2", *user.Course)
	require.NotNil(t, user.Group)
	assert.Equal(t, "ИВТ-21", *user.Group)

	req := validStudent()
	req.Role = "teacher"
	teacher := req.User()
	assert.Equal(t, auth.RoleTeacher, teacher.Role)
	assert.Nil(t, teacher.Course)
	assert.Nil(t, teacher.Group)
}

func TestSmallPayloads_Validate(t *testing.T) {
	assert.Error(t, auth.LoginRequest{Email: "a@b.ru"}.Validate())
	assert.NoError(t, auth.LoginRequest{Email: "a@b.ru", Password: "x"}.Validate())

	err := auth.RefreshRequest{}.Validate()
	require.Error(t, err)
	assert.Equal(t, "Refresh token обязателен", messageOf(err))

	assert.NoError(t, auth.StatusUpdateRequest{Status: "blocked"}.Validate())
	assert.Error(t, auth.StatusUpdateRequest{Status: "pending"}.Validate())
	assert.Error(t, auth.StatusUpdateRequest{}.Validate())
}
