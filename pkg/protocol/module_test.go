package protocol

import (
	"testing"

	"github.com/cfoust/tundra/pkg/world"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCopyInputs(t *testing.T) {
	refs := []world.Ref{{ID: 1, Type: world.PlayerType}}
	message := NewEntitiesMessage(refs)
	refs[0].ID = 99

	assert.Equal(t, world.EntityID(1), message.Entities[0].ID)
	assert.Equal(t, NewEntitiesOp, message.Op)
}

func TestGameStateCarriesFrame(t *testing.T) {
	store := world.NewStore()
	store.CreateEntity(world.PlayerType, world.Position{X: 7, Y: 3})
	packets, err := store.Snapshot()
	require.NoError(t, err)

	data, err := Encode(GameStateMessage(packets, 12))
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	state, ok := decoded.(GameState)
	require.True(t, ok)
	assert.Equal(t, uint64(12), state.FrameNumber)
	require.Len(t, state.Packets, 1)

	var position world.Position
	require.NoError(t, cbor.Unmarshal(state.Packets[0].Data, &position))
	assert.Equal(t, world.Position{X: 7, Y: 3}, position)
}

func TestDecodeClientMessages(t *testing.T) {
	data, err := Encode(InputMessage(world.West))
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, InputMessage(world.West), decoded)

	data, err = Encode(HelloMessage("alice", "secret"))
	require.NoError(t, err)
	decoded, err = Decode(data)
	require.NoError(t, err)
	assert.Equal(t, HelloMessage("alice", "secret"), decoded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.Error(t, err)

	data, err := cbor.Marshal(GenericMessage{Op: 99})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.Error(t, err)
}

func encodedKeys(t *testing.T, message Message) []string {
	data, err := Encode(message)
	require.NoError(t, err)

	var fields map[string]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(data, &fields))

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	return keys
}

func TestWireFieldNames(t *testing.T) {
	refs := []world.Ref{{ID: 1, Type: world.PlayerType}}
	packets := []world.Packet{{Entity: 1, Kind: world.MotionKind, Removed: true}}

	assert.ElementsMatch(t, []string{"op", "entities"}, encodedKeys(t, NewEntitiesMessage(refs)))
	assert.ElementsMatch(t, []string{"op", "packets", "frameNumber"}, encodedKeys(t, GameStateMessage(packets, 7)))
	assert.ElementsMatch(t, []string{"op", "entities"}, encodedKeys(t, EntitiesDeletedMessage(refs)))
	assert.ElementsMatch(t, []string{"op", "entity", "session"}, encodedKeys(t, WelcomeMessage(1, "lobby")))
	assert.ElementsMatch(t, []string{"op", "reason"}, encodedKeys(t, RejectedMessage("no")))
	assert.ElementsMatch(t, []string{"op", "name", "token"}, encodedKeys(t, HelloMessage("a", "b")))
	assert.ElementsMatch(t, []string{"op", "direction"}, encodedKeys(t, InputMessage(world.North)))

	data, err := Encode(GameStateMessage(packets, 7))
	require.NoError(t, err)
	var state struct {
		FrameNumber uint64                       `cbor:"frameNumber"`
		Packets     []map[string]cbor.RawMessage `cbor:"packets"`
	}
	require.NoError(t, cbor.Unmarshal(data, &state))
	assert.Equal(t, uint64(7), state.FrameNumber)
	require.Len(t, state.Packets, 1)
	assert.Contains(t, state.Packets[0], "entity")
	assert.Contains(t, state.Packets[0], "kind")
	assert.Contains(t, state.Packets[0], "removed")
	assert.NotContains(t, state.Packets[0], "data")
}
