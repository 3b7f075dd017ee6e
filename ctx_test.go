package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/fenixedu/fenix-auth"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, ctx, auth.WithPrincipalContext(ctx, nil))

	user := &auth.User{ID: uuid.New(), Role: auth.RoleTeacher, Status: auth.UserStatusActive}
	claims := &auth.TokenClaims{UID: user.ID.String()}
	ctx = auth.WithPrincipalContext(ctx, &auth.Principal{User: user, Claims: claims})

	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)

	gotClaims, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), gotClaims.UserID())
}

func TestCan(t *testing.T) {
	assert.False(t, auth.Can(context.Background(), nil))

	teacher := &auth.User{ID: uuid.New(), Role: auth.RoleTeacher, Status: auth.UserStatusActive}
	ctx := auth.WithContext(context.Background(), teacher)
	assert.True(t, auth.Can(ctx, auth.TierTeacher))
	assert.False(t, auth.Can(ctx, auth.TierDepartmentHead))

	pendingAdmin := &auth.User{ID: uuid.New(), Role: auth.RoleAdmin, Status: auth.UserStatusPending}
	ctx = auth.WithContext(context.Background(), pendingAdmin)
	assert.False(t, auth.Can(ctx, auth.TierAdmin))
}
