package utils

import (
	"context"
	"time"
)

// Lifetime is how long something runs and why it stopped. Embed it to get a
// context that ends with the owner.
type Lifetime struct {
	ctx     context.Context
	end     context.CancelCauseFunc
	started time.Time
}

func NewLifetime(parent context.Context) Lifetime {
	ctx, end := context.WithCancelCause(parent)
	return Lifetime{
		ctx:     ctx,
		end:     end,
		started: time.Now(),
	}
}

func (l *Lifetime) Ctx() context.Context { return l.ctx }

func (l *Lifetime) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lifetime) IsDone() bool { return l.ctx.Err() != nil }

func (l *Lifetime) Uptime() time.Duration {
	return time.Since(l.started)
}

// End stops the lifetime. Only the first cause is kept; a nil cause is
// recorded as context.Canceled.
func (l *Lifetime) End(cause error) {
	l.end(cause)
}

// Cause is nil while running. Once ended it is the cause passed to End, or
// the parent context's cause if that ended first.
func (l *Lifetime) Cause() error {
	return context.Cause(l.ctx)
}
