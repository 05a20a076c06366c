package protocol

import (
	"fmt"

	"github.com/cfoust/tundra/pkg/world"

	"github.com/fxamacker/cbor/v2"
)

type Op int

const (
	// Server -> client
	NewEntitiesOp Op = iota
	GameStateOp
	EntitiesDeletedOp
	WelcomeOp
	RejectedOp
	// Client -> server
	HelloOp
	InputOp
)

func (o Op) String() string {
	switch o {
	case NewEntitiesOp:
		return "NEW_ENTITIES"
	case GameStateOp:
		return "GAME_STATE"
	case EntitiesDeletedOp:
		return "ENTITIES_DELETED"
	case WelcomeOp:
		return "WELCOME"
	case RejectedOp:
		return "REJECTED"
	case HelloOp:
		return "HELLO"
	case InputOp:
		return "INPUT"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Message is anything that can be framed on a client connection. Messages are
// built fresh for every send and not modified afterwards.
type Message interface {
	Type() Op
}

// Tells the client about entities it should create.
type NewEntities struct {
	Op       Op          `cbor:"op"`       // NewEntitiesOp
	Entities []world.Ref `cbor:"entities"`
}

func (m NewEntities) Type() Op { return NewEntitiesOp }

// Component data, either the changes from one tick or a full snapshot.
type GameState struct {
	Op          Op             `cbor:"op"`          // GameStateOp
	Packets     []world.Packet `cbor:"packets"`
	FrameNumber uint64         `cbor:"frameNumber"`
}

func (m GameState) Type() Op { return GameStateOp }

type EntitiesDeleted struct {
	Op       Op          `cbor:"op"`       // EntitiesDeletedOp
	Entities []world.Ref `cbor:"entities"`
}

func (m EntitiesDeleted) Type() Op { return EntitiesDeletedOp }

// Sent once the client has joined so it knows which entity is its own.
type Welcome struct {
	Op      Op             `cbor:"op"`      // WelcomeOp
	Entity  world.EntityID `cbor:"entity"`
	Session string         `cbor:"session"`
}

func (m Welcome) Type() Op { return WelcomeOp }

type Rejected struct {
	Op     Op     `cbor:"op"`     // RejectedOp
	Reason string `cbor:"reason"`
}

func (m Rejected) Type() Op { return RejectedOp }

// The first message a client sends.
type Hello struct {
	Op    Op     `cbor:"op"`    // HelloOp
	Name  string `cbor:"name"`
	Token string `cbor:"token"`
}

func (m Hello) Type() Op { return HelloOp }

// A single player input.
type Input struct {
	Op        Op              `cbor:"op"`        // InputOp
	Direction world.Direction `cbor:"direction"`
}

func (m Input) Type() Op { return InputOp }

type GenericMessage struct {
	Op Op `cbor:"op"`
}

func NewEntitiesMessage(refs []world.Ref) NewEntities {
	return NewEntities{
		Op:       NewEntitiesOp,
		Entities: append([]world.Ref{}, refs...),
	}
}

func GameStateMessage(packets []world.Packet, frame uint64) GameState {
	return GameState{
		Op:          GameStateOp,
		Packets:     append([]world.Packet{}, packets...),
		FrameNumber: frame,
	}
}

func EntitiesDeletedMessage(refs []world.Ref) EntitiesDeleted {
	return EntitiesDeleted{
		Op:       EntitiesDeletedOp,
		Entities: append([]world.Ref{}, refs...),
	}
}

func WelcomeMessage(entity world.EntityID, session string) Welcome {
	return Welcome{Op: WelcomeOp, Entity: entity, Session: session}
}

func RejectedMessage(reason string) Rejected {
	return Rejected{Op: RejectedOp, Reason: reason}
}

func HelloMessage(name, token string) Hello {
	return Hello{Op: HelloOp, Name: name, Token: token}
}

func InputMessage(direction world.Direction) Input {
	return Input{Op: InputOp, Direction: direction}
}

func Encode(message Message) ([]byte, error) {
	return cbor.Marshal(message)
}

// Decode reads the op of a frame and then the message it names.
func Decode(data []byte) (Message, error) {
	var generic GenericMessage
	if err := cbor.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("could not read op: %w", err)
	}

	var message Message
	var err error
	switch generic.Op {
	case NewEntitiesOp:
		var m NewEntities
		err = cbor.Unmarshal(data, &m)
		message = m
	case GameStateOp:
		var m GameState
		err = cbor.Unmarshal(data, &m)
		message = m
	case EntitiesDeletedOp:
		var m EntitiesDeleted
		err = cbor.Unmarshal(data, &m)
		message = m
	case WelcomeOp:
		var m Welcome
		err = cbor.Unmarshal(data, &m)
		message = m
	case RejectedOp:
		var m Rejected
		err = cbor.Unmarshal(data, &m)
		message = m
	case HelloOp:
		var m Hello
		err = cbor.Unmarshal(data, &m)
		message = m
	case InputOp:
		var m Input
		err = cbor.Unmarshal(data, &m)
		message = m
	default:
		return nil, fmt.Errorf("unknown op %d", int(generic.Op))
	}

	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", generic.Op, err)
	}
	return message, nil
}
