package gate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"batchrun/pkg/gate"

	"github.com/stretchr/testify/require"
)

func TestConcurrencyBound(t *testing.T) {
	g := gate.New(gate.Config{MaxConcurrency: 2})
	release := make(chan struct{})

	var active int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = gate.Run(context.Background(), g, func(ctx context.Context) (struct{}, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				<-release
				atomic.AddInt32(&active, -1)
				return struct{}{}, nil
			})
		}()
	}

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 2, g.Active())
	close(release)
	wg.Wait()
	require.LessOrEqual(t, int(maxSeen), 2)
}

func TestRateLimitEnforcement(t *testing.T) {
	g := gate.New(gate.Config{
		MaxConcurrency: 6,
		Windows:        []gate.WindowLimit{{Window: time.Second, Cap: 3}},
	})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = gate.Run(context.Background(), g, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestRunPropagatesTaskError(t *testing.T) {
	g := gate.New(gate.Config{MaxConcurrency: 1})
	sentinel := context.Canceled

	_, err := gate.Run(context.Background(), g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 0, g.Active())
}

func TestRunHonorsContextCancellation(t *testing.T) {
	g := gate.New(gate.Config{MaxConcurrency: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gate.Run(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
