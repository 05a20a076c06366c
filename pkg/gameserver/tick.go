package gameserver

import (
	"fmt"
	"time"

	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/statsd"
)

// PhaseError is a failure in one phase of a tick. Effects of earlier phases,
// and of the failing phase up to the failure, are kept.
type PhaseError struct {
	Phase string
	Frame uint64
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("frame %d: %s: %v", e.Frame, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

type phase struct {
	name string
	run  func(frame uint64) error
}

// Tick runs one frame: apply actions, advance the world, broadcast what
// changed. The frame counter only moves when every phase succeeds.
func (s *Session) Tick() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.terminated {
		return ErrTerminated
	}

	frame := s.frame.Load()
	phases := []phase{
		{"dispatch", s.dispatchPhase},
		{"advance", s.advancePhase},
		{"broadcast", s.broadcastPhase},
	}

	start := time.Now()
	defer s.health.Clear()
	for _, p := range phases {
		s.health.Mark(p.name)
		phaseStart := time.Now()
		err := runPhase(p, frame)
		statsd.EmitTickStat(phaseStart, p.name)
		if err != nil {
			statsd.Count("tick_failures", 1, "stage:"+p.name)
			return err
		}
	}
	statsd.EmitTickStat(start, "full_tick")

	s.frame.Add(1)
	return nil
}

func runPhase(p phase, frame uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PhaseError{
				Phase: p.name,
				Frame: frame,
				Err:   fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if err := p.run(frame); err != nil {
		return &PhaseError{Phase: p.name, Frame: frame, Err: err}
	}
	return nil
}

func (s *Session) dispatchPhase(frame uint64) error {
	queued := s.drain()
	s.slot = s.dispatcher.Resolve(queued, s.slot)

	if len(queued) > 0 || !s.slot.IsEmpty() {
		s.logger.Debug().
			Uint64("frame", frame).
			Int("queued", len(queued)).
			Stringer("slot", s.slot).
			Msg("resolved actions")
	}
	statsd.Count("actions", int64(len(queued)))
	return nil
}

func (s *Session) advancePhase(frame uint64) error {
	return s.store.Advance()
}

func (s *Session) broadcastPhase(frame uint64) error {
	packets, err := s.store.Flush()
	if err != nil {
		return err
	}
	if len(packets) == 0 {
		return nil
	}
	s.transport.Broadcast(protocol.GameStateMessage(packets, frame))
	return nil
}
