package servers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cfoust/tundra/pkg/gameserver"
	"github.com/cfoust/tundra/pkg/utils"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/google/uuid"
	"github.com/repeale/fp-go"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

var (
	ErrNoSession     = errors.New("no such session")
	ErrSessionExists = errors.New("session already exists")
)

type IDGenerator interface {
	NewID() string
}

type UUIDGenerator struct{}

// NewID returns the first block of a random UUID, which is plenty for the
// handful of sessions one host runs.
func (UUIDGenerator) NewID() string {
	return uuid.New().String()[:8]
}

// Presence is told about every player that joins or leaves any session.
type Presence interface {
	Join(ctx context.Context, session string, entity world.EntityID, name string) error
	Leave(ctx context.Context, session string, entity world.EntityID) error
	Clear(ctx context.Context, session string) error
}

type Options struct {
	// Chosen by the manager when empty.
	ID     string
	Config gameserver.Config
}

type Info struct {
	ID      string        `json:"id"`
	Frame   uint64        `json:"frame"`
	Players int           `json:"players"`
	Paused  bool          `json:"paused"`
	Uptime  time.Duration `json:"uptime"`
}

type Manager struct {
	ctx      context.Context
	ids      IDGenerator
	presence Presence

	mutex    deadlock.Mutex
	sessions map[string]*gameserver.Session
}

func NewManager(ctx context.Context, ids IDGenerator) *Manager {
	if ids == nil {
		ids = UUIDGenerator{}
	}

	return &Manager{
		ctx:      ctx,
		ids:      ids,
		sessions: make(map[string]*gameserver.Session),
	}
}

// SetPresence must be called before any session is created.
func (m *Manager) SetPresence(presence Presence) {
	m.presence = presence
}

// Create builds and starts a session. Sessions live until they are removed or
// the manager's context ends.
func (m *Manager) Create(options Options) (*gameserver.Session, error) {
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	id := options.ID
	if id == "" {
		for {
			id = m.ids.NewID()
			if _, ok := m.sessions[id]; !ok {
				break
			}
		}
	}
	if _, ok := m.sessions[id]; ok {
		m.mutex.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	session := gameserver.New(m.ctx, id, options.Config)
	m.sessions[id] = session
	m.mutex.Unlock()

	if m.presence != nil {
		go m.trackPresence(session, session.Events().Subscribe())
	}

	if err := session.Start(); err != nil {
		m.mutex.Lock()
		delete(m.sessions, id)
		m.mutex.Unlock()
		session.Terminate()
		return nil, fmt.Errorf("failed to start session %s: %w", id, err)
	}

	return session, nil
}

func (m *Manager) trackPresence(session *gameserver.Session, events *utils.Subscriber[gameserver.Event]) {
	id := session.ID()
	defer events.Done()

	logger := log.With().Str("session", id).Logger()

	for {
		select {
		case <-session.Ctx().Done():
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := m.presence.Clear(ctx, id); err != nil {
				logger.Warn().Err(err).Msg("failed to clear presence")
			}
			cancel()
			return
		case event := <-events.Recv():
			ctx, cancel := context.WithTimeout(session.Ctx(), time.Second)
			var err error
			switch event.Kind {
			case gameserver.EventJoined:
				err = m.presence.Join(ctx, id, event.Entity, event.Name)
			case gameserver.EventLeft:
				err = m.presence.Leave(ctx, id, event.Entity)
			}
			cancel()
			if err != nil {
				logger.Warn().Err(err).
					Stringer("event", event.Kind).
					Uint32("entity", uint32(event.Entity)).
					Msg("failed to update presence")
			}
		}
	}
}

func (m *Manager) Get(id string) (*gameserver.Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return session, nil
}

func (m *Manager) Remove(id string) error {
	m.mutex.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mutex.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	session.Terminate()
	log.Info().Str("session", id).Msg("session removed")
	return nil
}

func (m *Manager) sorted() []*gameserver.Session {
	m.mutex.Lock()
	sessions := make([]*gameserver.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mutex.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID() < sessions[j].ID()
	})
	return sessions
}

func (m *Manager) List() []Info {
	return fp.Map(func(session *gameserver.Session) Info {
		return Info{
			ID:      session.ID(),
			Frame:   session.Frame(),
			Players: session.Players(),
			Paused:  session.Paused(),
			Uptime:  session.Uptime().Round(time.Second),
		}
	})(m.sorted())
}

func (m *Manager) Shutdown() {
	m.mutex.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*gameserver.Session)
	m.mutex.Unlock()

	for _, session := range sessions {
		session.Terminate()
	}
}
