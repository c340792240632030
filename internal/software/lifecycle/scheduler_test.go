package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(5*time.Millisecond, func(context.Context) { ticks.Add(1) })

	s.Start(context.Background())
	s.Start(context.Background())
	require.True(t, s.Running())

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())

	s.Stop()
}

func TestSchedulerStopWaitsForRunningTick(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool

	s := NewScheduler(time.Millisecond, func(ctx context.Context) {
		select {
		case entered <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})
	s.Start(context.Background())

	<-entered
	s.Stop()
	assert.True(t, finished.Load())
}

func TestSchedulerStopsWithParentContext(t *testing.T) {
	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(2*time.Millisecond, func(context.Context) { ticks.Add(1) })
	s.Start(ctx)

	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}

func TestSchedulerDefaultInterval(t *testing.T) {
	s := NewScheduler(0, func(context.Context) {})
	assert.Equal(t, DefaultPollInterval, s.interval)
}
