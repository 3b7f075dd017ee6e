package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/fenixedu/fenix-auth"
)

func testIdentity() *auth.User {
	return &auth.User{
		ID:    uuid.MustParse("4b7f6f0e-3c51-4a53-9a0c-6d1f1e2c9a11"),
		Email: "teacher@fenixedu.ru",
		Role:  auth.RoleTeacher,
	}
}

func TestTokenService_IssuePair(t *testing.T) {
	ts := newTestTokens()
	user := testIdentity()

	pair, err := ts.IssuePair(user.Identity(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := ts.VerifyAccess(pair.AccessToken, testNow)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), access.UserID())
	assert.Equal(t, user.ID.String(), access.Subject())
	assert.Equal(t, user.Email, access.Email())
	assert.Equal(t, auth.TokenTypeAccess, access.Type())
	assert.Equal(t, "fenix-auth", access.Issuer)
	assert.NotEmpty(t, access.TokenID())
	assert.Equal(t, testNow, access.IssuedAt().UTC())
	assert.Equal(t, testNow.Add(time.Hour), access.Expires().UTC())

	refresh, err := ts.VerifyRefresh(pair.RefreshToken, testNow)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeRefresh, refresh.Type())
	assert.Equal(t, testNow.Add(24*time.Hour), refresh.Expires().UTC())
}

func TestTokenService_Verify(t *testing.T) {
	ts := newTestTokens()
	user := testIdentity()
	pair, err := ts.IssuePair(user.Identity(), testNow)
	require.NoError(t, err)

	other := auth.NewTokenService([]byte("another-key"), time.Hour, time.Hour, "fenix-auth", nil)
	foreign, err := other.IssueAccess(user.Identity(), testNow)
	require.NoError(t, err)

	wrongIssuer := auth.NewTokenService([]byte(testSecret), time.Hour, time.Hour, "someone-else", nil)
	foreignIssuer, err := wrongIssuer.IssueAccess(user.Identity(), testNow)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    "fenix-auth",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		TokenType: auth.TokenTypeAccess,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	untyped, err := ts.SignClaims(&auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    "fenix-auth",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	noExpiry, err := ts.SignClaims(&auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String(), Issuer: "fenix-auth"},
		TokenType:        auth.TokenTypeAccess,
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		at    time.Time
		kind  auth.ErrorKind
	}{
		{name: "garbage", token: "not.a.jwt", at: testNow, kind: auth.KindInvalidToken},
		{name: "wrong key", token: foreign, at: testNow, kind: auth.KindInvalidToken},
		{name: "wrong issuer", token: foreignIssuer, at: testNow, kind: auth.KindInvalidToken},
		{name: "unexpected algorithm", token: hs512, at: testNow, kind: auth.KindInvalidToken},
		{name: "missing type", token: untyped, at: testNow, kind: auth.KindInvalidToken},
		{name: "missing expiry", token: noExpiry, at: testNow, kind: auth.KindInvalidToken},
		{name: "refresh as access", token: pair.RefreshToken, at: testNow, kind: auth.KindInvalidToken},
		{name: "expired", token: pair.AccessToken, at: testNow.Add(time.Hour + time.Second), kind: auth.KindExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ts.VerifyAccess(tt.token, tt.at)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Equal(t, tt.kind, auth.KindOf(err))
		})
	}
}

func TestTokenService_ExpiryBoundary(t *testing.T) {
	ts := newTestTokens()
	user := testIdentity()

	t.Run("sub-second issue keeps the full lifetime", func(t *testing.T) {
		issuedAt := testNow.Add(500 * time.Millisecond)
		token, err := ts.IssueAccess(user.Identity(), issuedAt)
		require.NoError(t, err)

		claims, err := ts.VerifyAccess(token, issuedAt.Add(time.Hour-time.Millisecond))
		require.NoError(t, err)
		assert.False(t, claims.Expires().Before(issuedAt.Add(time.Hour)))

		_, err = ts.VerifyAccess(token, issuedAt.Add(time.Hour+time.Second))
		assert.Equal(t, auth.KindExpired, auth.KindOf(err))
	})

	t.Run("valid at exp, expired after", func(t *testing.T) {
		token, err := ts.IssueAccess(user.Identity(), testNow)
		require.NoError(t, err)

		_, err = ts.VerifyAccess(token, testNow.Add(time.Hour))
		require.NoError(t, err)

		_, err = ts.VerifyAccess(token, testNow.Add(time.Hour+time.Millisecond))
		assert.Equal(t, auth.KindExpired, auth.KindOf(err))
	})
}

func TestTokenService_Refresh(t *testing.T) {
	ts := newTestTokens()
	user := testIdentity()
	pair, err := ts.IssuePair(user.Identity(), testNow)
	require.NoError(t, err)

	later := testNow.Add(2 * time.Hour)
	fresh, err := ts.Refresh(pair.RefreshToken, later)
	require.NoError(t, err)

	claims, err := ts.VerifyAccess(fresh.AccessToken, later)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, user.Email, claims.Email())

	_, err = ts.Refresh(pair.AccessToken, testNow)
	assert.True(t, auth.IsKind(err, auth.KindInvalidToken))

	_, err = ts.Refresh(pair.RefreshToken, testNow.Add(25*time.Hour))
	require.Error(t, err)
	assert.True(t, auth.IsKind(err, auth.KindExpired))
}

func TestTokenService_Defaults(t *testing.T) {
	ts := auth.NewTokenService([]byte(testSecret), 0, -1, "", nil)
	assert.Equal(t, auth.DefaultAccessTokenTTL, ts.AccessTTL())
	assert.Equal(t, auth.DefaultRefreshTokenTTL, ts.RefreshTTL())
}

func TestTokenClaims_RemainingLifetime(t *testing.T) {
	claims := &auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Minute))},
	}
	assert.Equal(t, time.Minute, claims.RemainingLifetime(testNow))
	assert.Zero(t, claims.RemainingLifetime(testNow.Add(time.Hour)))
	assert.Zero(t, (&auth.TokenClaims{}).RemainingLifetime(testNow))
}
