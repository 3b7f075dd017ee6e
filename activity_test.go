package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/fenixedu/fenix-auth"
)

func TestMultiActivitySink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	boom := errors.New("boom")

	sink := auth.MultiActivitySink{
		first,
		nil,
		auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error { return boom }),
		second,
	}

	err := sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLogout})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
}

func TestActivitySinkFunc_Nil(t *testing.T) {
	var f auth.ActivitySinkFunc
	assert.NoError(t, f.Record(context.Background(), auth.ActivityEvent{}))
}
