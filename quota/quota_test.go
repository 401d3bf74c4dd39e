package quota

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"wargame/protocol"
)

func TestGuard(t *testing.T) {
	for limit := 0; limit <= 6; limit++ {
		g := New(limit)
		for i := 0; i < limit; i++ {
			require.NoError(t, g.TryConsume(), "call %d of %d should pass", i+1, limit)
		}
		require.False(t, g.Exhausted())
		require.ErrorIs(t, g.TryConsume(), protocol.ErrQuotaExceeded, "call %d should be denied", limit+1)
		require.ErrorIs(t, g.TryConsume(), protocol.ErrQuotaExceeded, "denial is sticky")
		require.True(t, g.Exhausted())
		require.Equal(t, limit, g.Allowed())
		require.Equal(t, limit+2, g.Used())
	}
}

func TestGuardNegativeLimit(t *testing.T) {
	g := New(-3)
	require.Equal(t, 0, g.Limit())
	require.ErrorIs(t, g.TryConsume(), protocol.ErrQuotaExceeded)
}

func TestGuardConcurrent(t *testing.T) {
	g := New(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if g.TryConsume() == nil {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 50, allowed)
	require.Equal(t, 160, g.Used())
}
