package observability_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/fenixedu/fenix-auth"
	"github.com/fenixedu/fenix-auth/observability"
)

func TestInitSentry_Disabled(t *testing.T) {
	flush, err := observability.InitSentry("", "test", "dev")
	require.NoError(t, err)
	assert.NotPanics(t, flush)
}

func TestInitSentry_InvalidDSN(t *testing.T) {
	flush, err := observability.InitSentry("not a dsn", "test", "dev")
	assert.Error(t, err)
	assert.NotNil(t, flush)
}

func TestCaptureErr_IsErrorReporter(t *testing.T) {
	var reporter auth.ErrorReporter = observability.CaptureErr
	assert.NotPanics(t, func() {
		reporter(errors.New("boom"))
		reporter(nil)
	})
}
