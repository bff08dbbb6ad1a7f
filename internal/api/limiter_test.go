package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionLimiter(t *testing.T) {
	l := NewSessionLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("s"), "disabled limiter always allows")
	}
	require.Zero(t, l.Len())

	l = NewSessionLimiter(0.001, 1)
	require.True(t, l.Allow("s"))
	require.False(t, l.Allow("s"))
	l.Forget("s")
	require.True(t, l.Allow("s"))
}

func TestSessionLimiterEvictsIdleEntries(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	l := NewSessionLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("session-%d", i))
	}
	require.Equal(t, 100, l.Len())

	now = now.Add(limiterIdleTTL / 2)
	l.Allow("recent")

	now = now.Add(limiterIdleTTL/2 + limiterSweepInterval)
	l.Allow("new")

	require.Equal(t, 2, l.Len(), "only entries seen within the idle ttl survive")
}

func TestClientKey(t *testing.T) {
	require.Equal(t, "addr:192.0.2.1", clientKey("192.0.2.1:1234"))
	require.Equal(t, "addr:::1", clientKey("[::1]:8080"))
	require.Equal(t, "addr:unix", clientKey("unix"))
}
