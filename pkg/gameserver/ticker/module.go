// Package ticker delivers ticks at a fixed interval and can be paused.
package ticker

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Ticker is like time.Ticker, but a slow reader never sees a backlog: if the
// previous tick has not been received yet, the new one is dropped.
type Ticker struct {
	C <-chan time.Time // The channel on which the ticks are delivered.

	mutex   deadlock.Mutex
	pause   chan bool
	stop    chan struct{}
	done    chan struct{}
	paused  bool
	stopped bool
	ticker  *time.Ticker
}

func New(d time.Duration) *Ticker {
	c := make(chan time.Time, 1)

	t := &Ticker{
		C:      c,
		pause:  make(chan bool),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ticker: time.NewTicker(d),
	}

	go t.run(c)

	return t
}

func (t *Ticker) run(c chan<- time.Time) {
	defer close(t.done)
	defer t.ticker.Stop()

	paused := false
	for {
		if paused {
			select {
			case paused = <-t.pause:
			case <-t.stop:
				return
			}
			continue
		}

		select {
		case now := <-t.ticker.C:
			select {
			case c <- now:
			default:
			}
		case paused = <-t.pause:
		case <-t.stop:
			return
		}
	}
}

func (t *Ticker) Pause() {
	t.setPaused(true)
}

func (t *Ticker) Resume() {
	t.setPaused(false)
}

func (t *Ticker) setPaused(paused bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.stopped || t.paused == paused {
		return
	}
	t.pause <- paused
	t.paused = paused
}

func (t *Ticker) Paused() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.paused
}

// Stop ends tick delivery. It is safe to call more than once.
func (t *Ticker) Stop() {
	t.mutex.Lock()
	if t.stopped {
		t.mutex.Unlock()
		return
	}
	t.stopped = true
	close(t.stop)
	t.mutex.Unlock()

	<-t.done
}

func (t *Ticker) Stopped() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stopped
}
