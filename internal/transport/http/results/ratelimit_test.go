package resultshttp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	first := l.get("10.0.0.1")
	l.get("10.0.0.2")
	require.Equal(t, 2, l.size())

	now = now.Add(limiterIdleTTL / 2)
	assert.Same(t, first, l.get("10.0.0.1"))

	// 10.0.0.2 已空闲超过 TTL，10.0.0.1 仍在窗口内
	now = now.Add(limiterIdleTTL/2 + time.Second)
	l.get("10.0.0.3")
	assert.Equal(t, 2, l.size())
	assert.Same(t, first, l.get("10.0.0.1"))

	now = now.Add(2 * limiterIdleTTL)
	l.get("10.0.0.4")
	assert.Equal(t, 1, l.size())
}
