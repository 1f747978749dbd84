package room

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TurnClock counts down one move. It calls onTick every tick interval and onExpire once when the
// timeout elapses. Callbacks run on their own goroutines and may still fire after Stop returns, so
// the owner must check that the clock is still current before acting on them.
type TurnClock struct {
	timer    *clock.Timer
	ticker   *clock.Ticker
	done     chan struct{}
	deadline time.Time
	stopOnce sync.Once
}

func StartTurnClock(clk clock.Clock, timeout, tick time.Duration, onTick, onExpire func()) *TurnClock {
	turnClock := &TurnClock{
		done:     make(chan struct{}),
		deadline: clk.Now().Add(timeout),
	}

	turnClock.timer = clk.AfterFunc(timeout, onExpire)

	if tick > 0 && onTick != nil {
		turnClock.ticker = clk.Ticker(tick)
		go turnClock.tickLoop(onTick)
	}

	return turnClock
}

func (that *TurnClock) tickLoop(onTick func()) {
	for {
		select {
		case <-that.done:
			return
		case <-that.ticker.C:
			select {
			case <-that.done:
				return
			default:
			}

			onTick()
		}
	}
}

// Remaining is never negative.
func (that *TurnClock) Remaining(now time.Time) time.Duration {
	remaining := that.deadline.Sub(now)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Stop is idempotent.
func (that *TurnClock) Stop() {
	that.stopOnce.Do(func() {
		that.timer.Stop()

		if that.ticker != nil {
			that.ticker.Stop()
		}

		close(that.done)
	})
}

// ReconnectWindow is the grace period of one disconnected seat. It fires onExpire at most once.
type ReconnectWindow struct {
	timer    *clock.Timer
	deadline time.Time
	stopOnce sync.Once
}

func StartReconnectWindow(clk clock.Clock, window time.Duration, onExpire func()) *ReconnectWindow {
	return &ReconnectWindow{
		timer:    clk.AfterFunc(window, onExpire),
		deadline: clk.Now().Add(window),
	}
}

func (that *ReconnectWindow) Deadline() time.Time {
	return that.deadline
}

func (that *ReconnectWindow) Stop() {
	that.stopOnce.Do(func() {
		that.timer.Stop()
	})
}
