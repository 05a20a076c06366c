package transport

import (
	"errors"
	"testing"

	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	received []protocol.Message
	err      error
}

func (f *fakeConn) Send(message protocol.Message) error {
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, message)
	return nil
}

func TestSendAndBroadcast(t *testing.T) {
	registry := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	registry.AddConnection(1, a)
	registry.AddConnection(2, b)

	message := protocol.NewEntitiesMessage([]world.Ref{{ID: 3, Type: world.PlayerType}})
	require.NoError(t, registry.Send(1, message))
	assert.Len(t, a.received, 1)
	assert.Empty(t, b.received)

	registry.Broadcast(message)
	assert.Len(t, a.received, 2)
	assert.Len(t, b.received, 1)
	assert.Equal(t, []world.EntityID{1, 2}, registry.IDs())
}

func TestSendUnknown(t *testing.T) {
	registry := NewRegistry()
	err := registry.Send(5, protocol.RejectedMessage("no"))
	assert.True(t, errors.Is(err, ErrNoConnection))
}

func TestRemove(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConn{}
	registry.AddConnection(1, conn)

	removed, ok := registry.RemoveConnection(1)
	require.True(t, ok)
	assert.Same(t, conn, removed)
	assert.False(t, registry.Has(1))
	assert.Equal(t, 0, registry.Len())

	_, ok = registry.RemoveConnection(1)
	assert.False(t, ok)
}

func TestBrokenConnectionDoesNotStopBroadcast(t *testing.T) {
	registry := NewRegistry()
	broken := &fakeConn{err: errors.New("closed")}
	healthy := &fakeConn{}
	registry.AddConnection(1, broken)
	registry.AddConnection(2, healthy)

	registry.Broadcast(protocol.RejectedMessage("bye"))
	assert.Len(t, healthy.received, 1)
}
