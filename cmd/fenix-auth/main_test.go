package main

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	auth "github.com/fenixedu/fenix-auth"
	"github.com/fenixedu/fenix-auth/config"
	"github.com/fenixedu/fenix-auth/logging"
	"github.com/fenixedu/fenix-auth/metrics"
	"github.com/fenixedu/fenix-auth/repository"
)

func testConfig() config.Config {
	return config.Config{
		Env:     "test",
		Release: "test",
		HTTP: config.HTTPConfig{
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Auth: config.AuthConfig{
			SigningKey:      "test-secret",
			SigningMethod:   "HS256",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			Issuer:          "fenix-auth",
			AuthScheme:      "Bearer",
			ContextKey:      "principal",
		},
	}
}

func TestBuildApp_ServesHealthAndMetrics(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = repository.Migrate(ctx, db)
	require.NoError(t, err)

	log := logging.FromZap(zap.NewNop(), zap.NewAtomicLevelAt(zapcore.InfoLevel))
	m := metrics.New()
	app, service := buildApp(testConfig(), db, auth.NewMemoryDenylist(), m, log)

	admin, created, err := service.EnsureFirstAdmin(ctx, auth.FirstAdmin{
		Email:    "admin@fenixedu.ru",
		Password: "admin123",
		FullName: "Администратор системы",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, auth.RoleAdmin, admin.Role)

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/auth/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `fenix_http_requests_total{method="GET",route="/api/auth/me",status="401"} 1`))
}

func TestOpenDenylist(t *testing.T) {
	ctx := context.Background()
	logger := auth.NopLogger()

	denylist, closeFn, err := openDenylist(ctx, config.RedisConfig{}, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &auth.MemoryDenylist{}, denylist)

	mr := miniredis.RunT(t)
	denylist, closeFn, err = openDenylist(ctx, config.RedisConfig{Addr: mr.Addr(), Prefix: "bl:"}, logger)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, denylist.Revoke(ctx, "tok", time.Minute))
	assert.True(t, mr.Exists("bl:tok"))

	mr.Close()
	_, _, err = openDenylist(ctx, config.RedisConfig{Addr: mr.Addr()}, logger)
	assert.Error(t, err)
}
