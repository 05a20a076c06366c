package gameserver

import (
	"github.com/cfoust/tundra/pkg/world"
)

type EventKind uint8

const (
	EventJoined EventKind = iota
	EventLeft
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	}
	return "unknown"
}

// Event tells the host about players coming and going. Clients learn the same
// things through the protocol.
type Event struct {
	Kind    EventKind
	Session string
	Entity  world.EntityID
	Name    string
}
