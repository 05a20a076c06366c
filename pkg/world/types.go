package world

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// A unique identifier for an entity for the lifetime of its store.
type EntityID uint32

type EntityType string

const (
	PlayerType EntityType = "player"
)

// Ref names an entity without any of its component data.
type Ref struct {
	ID   EntityID   `cbor:"id" json:"id"`
	Type EntityType `cbor:"type" json:"type"`
}

type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

var directionNames = [...]string{"north", "east", "south", "west"}

func (d Direction) Valid() bool {
	return d <= West
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// Delta returns the cell offset of a single step. Y grows southward.
func (d Direction) Delta() (dx, dy int32) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}

func ParseDirection(value string) (Direction, error) {
	for i, name := range directionNames {
		if strings.EqualFold(name, value) {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", value)
}

// Component is a typed payload attached to an entity. An entity holds at most
// one component of each kind.
type Component interface {
	Kind() string
}

const (
	PositionKind = "position"
	MotionKind   = "motion"
	NameKind     = "name"
)

type Position struct {
	X int32 `cbor:"x"`
	Y int32 `cbor:"y"`
}

func (Position) Kind() string { return PositionKind }

// Motion is present while an entity is travelling to the neighbouring cell.
type Motion struct {
	Direction Direction `cbor:"direction"`
	// Ticks left until the entity arrives
	Remaining uint32 `cbor:"remaining"`
}

func (Motion) Kind() string { return MotionKind }

type Name struct {
	Value string `cbor:"value"`
}

func (Name) Kind() string { return NameKind }

// Packet is the encoded form of a single component as it goes out on the
// wire.
type Packet struct {
	Entity EntityID        `cbor:"entity"`
	Kind   string          `cbor:"kind"`
	Data   cbor.RawMessage `cbor:"data,omitempty"`
	// Set when the component was detached; Data is empty.
	Removed bool `cbor:"removed,omitempty"`
}
