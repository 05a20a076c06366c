// Package transport tracks the live connection of every player entity.
package transport

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

var ErrNoConnection = errors.New("no connection for entity")

// Connection delivers messages to a single client, in order. Send should not
// block on the network.
type Connection interface {
	Send(message protocol.Message) error
}

type Registry struct {
	mutex       deadlock.RWMutex
	connections map[world.EntityID]Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[world.EntityID]Connection),
	}
}

// AddConnection registers conn under id, replacing any previous connection.
func (r *Registry) AddConnection(id world.EntityID, conn Connection) {
	r.mutex.Lock()
	r.connections[id] = conn
	r.mutex.Unlock()
}

func (r *Registry) RemoveConnection(id world.EntityID) (Connection, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	conn, ok := r.connections[id]
	delete(r.connections, id)
	return conn, ok
}

func (r *Registry) Has(id world.EntityID) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.connections[id]
	return ok
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.connections)
}

// IDs returns the entities with a connection, in ascending order.
func (r *Registry) IDs() []world.EntityID {
	r.mutex.RLock()
	ids := make([]world.EntityID, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	r.mutex.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Send delivers a message to one entity. Delivery failures are logged here and
// not returned; the only error is an entity with no connection.
func (r *Registry) Send(id world.EntityID, message protocol.Message) error {
	r.mutex.RLock()
	conn, ok := r.connections[id]
	r.mutex.RUnlock()

	if !ok {
		return fmt.Errorf("send %s to %d: %w", message.Type(), id, ErrNoConnection)
	}

	r.deliver(id, conn, message)
	return nil
}

// Broadcast delivers a message to every connection in entity order.
func (r *Registry) Broadcast(message protocol.Message) {
	for _, id := range r.IDs() {
		r.mutex.RLock()
		conn, ok := r.connections[id]
		r.mutex.RUnlock()
		if !ok {
			continue
		}
		r.deliver(id, conn, message)
	}
}

func (r *Registry) deliver(id world.EntityID, conn Connection, message protocol.Message) {
	if err := conn.Send(message); err != nil {
		log.Warn().
			Err(err).
			Uint32("entity", uint32(id)).
			Str("op", message.Type().String()).
			Msg("failed to deliver message")
	}
}
