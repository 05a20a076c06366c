// Package dispatch applies queued player actions against the world.
package dispatch

import (
	"github.com/cfoust/tundra/pkg/game/action"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/rs/zerolog/log"
)

// Slot holds at most one action that could not be applied because its entity
// was busy. It is not a queue: a newer contended action replaces whatever the
// slot held.
type Slot struct {
	action action.Action
}

var Empty = Slot{}

func Holding(a action.Action) Slot {
	return Slot{action: a}
}

func (s Slot) Action() (action.Action, bool) {
	return s.action, s.action != nil
}

func (s Slot) IsEmpty() bool {
	return s.action == nil
}

func (s Slot) String() string {
	if s.action == nil {
		return "empty"
	}
	return "holding " + s.action.String()
}

// Mover is the part of the simulation a move needs.
type Mover interface {
	IsMoving(id world.EntityID) (bool, error)
	BeginMove(id world.EntityID, direction world.Direction) error
}

type Dispatcher struct {
	mover Mover
}

func New(mover Mover) *Dispatcher {
	return &Dispatcher{mover: mover}
}

// Resolve retries the held action, then attempts each queued action in
// arrival order. Any action that fails ends up in the returned slot, the last
// failure winning. Failures are never errors: the action is simply tried again
// next tick.
func (d *Dispatcher) Resolve(queued []action.Action, slot Slot) Slot {
	if held, ok := slot.Action(); ok {
		if d.Apply(held) {
			slot = Empty
		}
	}

	for _, next := range queued {
		if !d.Apply(next) {
			slot = Holding(next)
		}
	}

	return slot
}

// Apply makes a single attempt at an action and reports whether it took.
func (d *Dispatcher) Apply(a action.Action) bool {
	if a == nil {
		return false
	}
	return a.Accept(applier{d})
}

type applier struct {
	*Dispatcher
}

func (a applier) VisitMove(move action.Move) bool {
	moving, err := a.mover.IsMoving(move.Source)
	if err != nil {
		log.Debug().Err(err).Str("action", move.String()).Msg("could not apply")
		return false
	}
	if moving {
		return false
	}

	if err := a.mover.BeginMove(move.Source, move.Direction); err != nil {
		log.Debug().Err(err).Str("action", move.String()).Msg("could not apply")
		return false
	}
	return true
}
