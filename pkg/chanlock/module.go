package chanlock

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sasha-s/go-deadlock"
)

// Utility for diagnosing a stuck event loop. The loop marks each stage of its
// work and clears the mark when it is idle again; Watch reports work that has
// been running for longer than the timeout.
type Chanlock struct {
	log      zerolog.Logger
	timeout  time.Duration
	mutex    deadlock.RWMutex
	lastMark string
	since    time.Time
	reported bool
}

const (
	TIMEOUT_DURATION      = 15 * time.Second
	HEALTH_CHECK_DURATION = 1 * time.Second
)

func New(logger zerolog.Logger, timeout time.Duration) *Chanlock {
	if timeout <= 0 {
		timeout = TIMEOUT_DURATION
	}
	return &Chanlock{
		log:     logger,
		timeout: timeout,
	}
}

func (c *Chanlock) Mark(name string) {
	c.mutex.Lock()
	c.lastMark = name
	if c.since.IsZero() {
		c.since = time.Now()
	}
	c.mutex.Unlock()
}

// Clear records that the loop has finished its work.
func (c *Chanlock) Clear() {
	c.mutex.Lock()
	c.lastMark = ""
	c.since = time.Time{}
	c.reported = false
	c.mutex.Unlock()
}

// Stalled returns the last mark and how long the current work has been
// running, if that exceeds the timeout.
func (c *Chanlock) Stalled(now time.Time) (string, time.Duration, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.since.IsZero() {
		return "", 0, false
	}
	elapsed := now.Sub(c.since)
	return c.lastMark, elapsed, elapsed > c.timeout
}

func (c *Chanlock) Watch(ctx context.Context) {
	ticker := time.NewTicker(HEALTH_CHECK_DURATION)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			mark, elapsed, stalled := c.Stalled(now)
			if !stalled {
				continue
			}

			c.mutex.Lock()
			reported := c.reported
			c.reported = true
			c.mutex.Unlock()

			if reported {
				continue
			}

			c.log.Error().
				Str("mark", mark).
				Dur("elapsed", elapsed).
				Msg("event loop no longer healthy")
		}
	}
}
