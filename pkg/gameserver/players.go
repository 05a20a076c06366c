package gameserver

import (
	"fmt"

	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/transport"
	"github.com/cfoust/tundra/pkg/world"
)

// Credentials identify a player that has already been authenticated.
type Credentials struct {
	Name string
}

// AddPlayer creates an entity for a new player and brings its connection up
// to date. The order of sends matters: the newcomer learns the existing
// roster first, everyone learns about the newcomer, and only then does the
// newcomer get component data, which may refer to any of those entities.
func (s *Session) AddPlayer(conn transport.Connection, credentials Credentials) (world.EntityID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.terminated {
		return 0, ErrTerminated
	}

	roster := s.store.Roster()

	components := []world.Component{s.config.Spawn()}
	if credentials.Name != "" {
		components = append(components, world.Name{Value: credentials.Name})
	}
	id := s.store.CreateEntity(world.PlayerType, components...)

	s.transport.AddConnection(id, conn)

	if err := s.transport.Send(id, protocol.NewEntitiesMessage(roster)); err != nil {
		return id, err
	}

	s.transport.Broadcast(protocol.NewEntitiesMessage([]world.Ref{
		{ID: id, Type: world.PlayerType},
	}))

	snapshot, err := s.store.Snapshot()
	if err != nil {
		return id, fmt.Errorf("failed to snapshot world for %d: %w", id, err)
	}
	if err := s.transport.Send(id, protocol.GameStateMessage(snapshot, s.frame.Load())); err != nil {
		return id, err
	}

	s.logger.Info().
		Uint32("entity", uint32(id)).
		Str("name", credentials.Name).
		Int("roster", len(roster)).
		Msg("player joined")

	s.events.Publish(Event{
		Kind:    EventJoined,
		Session: s.id,
		Entity:  id,
		Name:    credentials.Name,
	})

	return id, nil
}

// RemovePlayer deletes the player's entity and connection, then tells
// everyone who is left.
func (s *Session) RemovePlayer(id world.EntityID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	typ, ok := s.store.Type(id)
	if !ok {
		return fmt.Errorf("remove player %d: %w", id, world.ErrNoEntity)
	}

	if err := s.store.RemoveEntity(id); err != nil {
		return err
	}
	s.transport.RemoveConnection(id)

	s.transport.Broadcast(protocol.EntitiesDeletedMessage([]world.Ref{
		{ID: id, Type: typ},
	}))

	s.logger.Info().Uint32("entity", uint32(id)).Msg("player left")

	s.events.Publish(Event{
		Kind:    EventLeft,
		Session: s.id,
		Entity:  id,
	})

	return nil
}
