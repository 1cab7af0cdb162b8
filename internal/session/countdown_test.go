package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCountdown_TicksWithEpoch(t *testing.T) {
	defer goleak.VerifyNone(t)

	var last atomic.Uint64
	var ticks atomic.Int32
	c := NewCountdown(time.Millisecond, func(epoch uint64) {
		last.Store(epoch)
		ticks.Add(1)
	})

	c.Start(7)
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(7), last.Load())
	assert.True(t, c.Running())

	c.Start(8)
	require.Eventually(t, func() bool { return last.Load() == 8 }, time.Second, time.Millisecond)

	c.Stop()
	c.Wait()
	assert.False(t, c.Running())

	n := ticks.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, ticks.Load(), "no ticks after Stop")
}

func TestRunner_BackgroundCountdownTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRunner(keyGrader(), Options{Budget: 2, TickInterval: time.Millisecond})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3), Mode: ModeMillionaire}))

	require.Eventually(t, r.IsFinished, time.Second, time.Millisecond)
	assert.Equal(t, LevelFailed, r.Ladder()[0].Status)

	r.Close()
}

func TestRunner_CloseStopsCountdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRunner(keyGrader(), Options{Budget: 1000, TickInterval: time.Millisecond})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3), Mode: ModeMillionaire}))
	require.Eventually(t, func() bool { return r.Snapshot().Remaining < 1000 }, time.Second, time.Millisecond)

	r.Close()
	left := r.Snapshot().Remaining
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, left, r.Snapshot().Remaining)
}
