package session

import (
	"sync"
	"time"
)

// Countdown ticks a callback on a fixed interval from its own goroutine.
// Each loop passes the epoch it was started with to the callback, so a tick
// that was already in flight when the countdown restarted can be told apart.
type Countdown struct {
	interval time.Duration
	tick     func(epoch uint64)

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewCountdown creates a stopped countdown.
func NewCountdown(interval time.Duration, tick func(epoch uint64)) *Countdown {
	return &Countdown{interval: interval, tick: tick}
}

// Start stops any running loop and starts a new one for epoch.
func (c *Countdown) Start(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	stop := make(chan struct{})
	c.stop = stop
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.tick(epoch)
			}
		}
	}()
}

// Stop halts the loop. It does not wait for the goroutine to exit.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Running reports whether a loop is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Wait blocks until every loop goroutine has exited. Call it after Stop and
// never while holding a lock the tick callback takes.
func (c *Countdown) Wait() {
	c.wg.Wait()
}
