package app

import (
	"sync"
	"time"
)

// timer drives the once-per-second countdown for a session. It is the only
// source of interleaving against session state; Stop is idempotent and is
// invoked on every exit path from the attempt.
type timer struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// startTimer begins ticking at the given interval. tick is invoked once per
// interval and returns false to stop the loop (time expired or session gone).
func startTimer(interval time.Duration, tick func() bool) *timer {
	t := &timer{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				if !tick() {
					t.Stop()
					return
				}
			case <-t.done:
				return
			}
		}
	}()
	return t
}

// Stop cancels the tick loop. Safe to call more than once.
func (t *timer) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
