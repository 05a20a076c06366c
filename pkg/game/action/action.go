// Package action defines the player actions a session accepts.
//
// The set of actions is closed. Every action is dispatched through a Visitor,
// so adding a new kind means adding a method to Visitor, and every dispatcher
// stops compiling until it handles the new kind.
package action

import (
	"fmt"

	"github.com/cfoust/tundra/pkg/world"
)

type Action interface {
	// The entity that issued the action.
	Entity() world.EntityID
	// Accept calls the Visitor method for this kind and returns its result.
	Accept(v Visitor) bool
	String() string

	sealed()
}

type Visitor interface {
	VisitMove(move Move) bool
}

// Move asks for the entity to step one cell in a direction.
type Move struct {
	Source    world.EntityID
	Direction world.Direction
}

var _ Action = Move{}

func (m Move) Entity() world.EntityID {
	return m.Source
}

func (m Move) Accept(v Visitor) bool {
	return v.VisitMove(m)
}

func (m Move) String() string {
	return fmt.Sprintf("move(%d, %s)", m.Source, m.Direction)
}

func (Move) sealed() {}
