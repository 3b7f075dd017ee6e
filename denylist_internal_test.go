package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenylist_SweepsPeriodically(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDenylist(WithDenylistClock(func() time.Time { return now }))

	require.NoError(t, d.Revoke(ctx, "stale", time.Second))
	now = now.Add(time.Minute)

	for i := 1; i < memorySweepEvery-1; i++ {
		require.NoError(t, d.Revoke(ctx, fmt.Sprintf("token-%d", i), time.Hour))
	}
	_, ok := d.entries["stale"]
	assert.True(t, ok, "revocations between sweeps leave expired entries in place")

	require.NoError(t, d.Revoke(ctx, "last", time.Hour))
	_, ok = d.entries["stale"]
	assert.False(t, ok)
	assert.Len(t, d.entries, memorySweepEvery-1)
}
