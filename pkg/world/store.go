package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

var ErrNoEntity = errors.New("no such entity")

// System is one step of simulation. Systems run once per Advance in the order
// they were registered, so a system may read what an earlier one wrote in the
// same tick.
type System interface {
	Name() string
	Update(store *Store) error
}

type entity struct {
	typ        EntityType
	components map[string]Component
}

// Store holds every entity and component in a world. It is not safe for
// concurrent use; the owning session serializes access.
type Store struct {
	lastID   EntityID
	entities map[EntityID]*entity
	dirty    map[EntityID]map[string]struct{}
	systems  []System
}

func NewStore() *Store {
	return &Store{
		entities: make(map[EntityID]*entity),
		dirty:    make(map[EntityID]map[string]struct{}),
	}
}

// Register appends a system to the end of the run order.
func (s *Store) Register(system System) {
	s.systems = append(s.systems, system)
}

func (s *Store) Systems() []string {
	names := make([]string, len(s.systems))
	for i, system := range s.systems {
		names[i] = system.Name()
	}
	return names
}

// Advance runs every registered system once. It stops at the first system
// that fails.
func (s *Store) Advance() error {
	for _, system := range s.systems {
		if err := system.Update(s); err != nil {
			return fmt.Errorf("system %s: %w", system.Name(), err)
		}
	}
	return nil
}

// CreateEntity adds an entity with the given components. Identifiers are never
// reused.
func (s *Store) CreateEntity(typ EntityType, components ...Component) EntityID {
	s.lastID++
	id := s.lastID
	s.entities[id] = &entity{
		typ:        typ,
		components: make(map[string]Component),
	}
	for _, component := range components {
		s.entities[id].components[component.Kind()] = component
		s.markDirty(id, component.Kind())
	}
	return id
}

func (s *Store) RemoveEntity(id EntityID) error {
	if _, ok := s.entities[id]; !ok {
		return fmt.Errorf("remove %d: %w", id, ErrNoEntity)
	}
	delete(s.entities, id)
	delete(s.dirty, id)
	return nil
}

func (s *Store) Exists(id EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

func (s *Store) Type(id EntityID) (EntityType, bool) {
	e, ok := s.entities[id]
	if !ok {
		return "", false
	}
	return e.typ, true
}

func (s *Store) Get(id EntityID, kind string) (Component, bool) {
	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	component, ok := e.components[kind]
	return component, ok
}

// Set attaches or replaces a component and marks it dirty.
func (s *Store) Set(id EntityID, component Component) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("set %s on %d: %w", component.Kind(), id, ErrNoEntity)
	}
	e.components[component.Kind()] = component
	s.markDirty(id, component.Kind())
	return nil
}

// Unset detaches a component. The removal is reported by the next Flush.
func (s *Store) Unset(id EntityID, kind string) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("unset %s on %d: %w", kind, id, ErrNoEntity)
	}
	if _, ok := e.components[kind]; !ok {
		return nil
	}
	delete(e.components, kind)
	s.markDirty(id, kind)
	return nil
}

// IsBusy reports whether the entity is in the middle of a move.
func (s *Store) IsBusy(id EntityID) bool {
	_, ok := s.Get(id, MotionKind)
	return ok
}

// With returns, in ascending order, the entities that have a component of
// the given kind.
func (s *Store) With(kind string) []EntityID {
	ids := make([]EntityID, 0)
	for id, e := range s.entities {
		if _, ok := e.components[kind]; ok {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// Roster lists every entity by id.
func (s *Store) Roster() []Ref {
	refs := make([]Ref, 0, len(s.entities))
	for id, e := range s.entities {
		refs = append(refs, Ref{ID: id, Type: e.typ})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// Snapshot encodes every component of every entity. It does not read or
// reset the dirty set.
func (s *Store) Snapshot() ([]Packet, error) {
	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sortIDs(ids)

	packets := make([]Packet, 0)
	for _, id := range ids {
		components := s.entities[id].components
		for _, kind := range sortedKinds(components) {
			packet, err := encode(id, components[kind])
			if err != nil {
				return nil, err
			}
			packets = append(packets, packet)
		}
	}
	return packets, nil
}

// Flush encodes the components that changed since the previous flush and
// clears the dirty set. A component detached in the meantime is reported as a
// removal packet. Removed entities are skipped; clients learn of those through
// their own message.
func (s *Store) Flush() ([]Packet, error) {
	ids := make([]EntityID, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sortIDs(ids)

	packets := make([]Packet, 0)
	for _, id := range ids {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		for _, kind := range sortedKinds(s.dirty[id]) {
			component, ok := e.components[kind]
			if !ok {
				packets = append(packets, Packet{
					Entity:  id,
					Kind:    kind,
					Removed: true,
				})
				continue
			}
			packet, err := encode(id, component)
			if err != nil {
				return nil, err
			}
			packets = append(packets, packet)
		}
	}

	s.dirty = make(map[EntityID]map[string]struct{})
	return packets, nil
}

func (s *Store) markDirty(id EntityID, kind string) {
	kinds, ok := s.dirty[id]
	if !ok {
		kinds = make(map[string]struct{})
		s.dirty[id] = kinds
	}
	kinds[kind] = struct{}{}
}

func encode(id EntityID, component Component) (Packet, error) {
	data, err := cbor.Marshal(component)
	if err != nil {
		return Packet{}, fmt.Errorf("encode %s of %d: %w", component.Kind(), id, err)
	}
	return Packet{
		Entity: id,
		Kind:   component.Kind(),
		Data:   data,
	}, nil
}

func sortIDs(ids []EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortedKinds[T any](set map[string]T) []string {
	kinds := make([]string, 0, len(set))
	for kind := range set {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
