package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cfoust/tundra/pkg/chanlock"
	"github.com/cfoust/tundra/pkg/dispatch"
	"github.com/cfoust/tundra/pkg/game/action"
	"github.com/cfoust/tundra/pkg/gameserver/ticker"
	"github.com/cfoust/tundra/pkg/transport"
	"github.com/cfoust/tundra/pkg/utils"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

var (
	ErrStarted    = errors.New("session already started")
	ErrTerminated = errors.New("session terminated")
)

// Session is one running game. It owns its world, the connections of its
// players and the dispatcher that applies their actions.
type Session struct {
	utils.Lifetime

	id     string
	config Config
	logger zerolog.Logger

	// Serializes ticks, joins and leaves. Nothing else touches the store or
	// the transport.
	mutex      deadlock.Mutex
	store      *world.Store
	transport  *transport.Registry
	dispatcher *dispatch.Dispatcher
	slot       dispatch.Slot
	started    bool
	terminated bool

	frame atomic.Uint64

	// Actions arrive from connection goroutines at any time. The slice is
	// swapped out whole at the start of each tick.
	pendingMutex deadlock.Mutex
	pending      []action.Action

	ticker *ticker.Ticker
	health *chanlock.Chanlock
	events *utils.Topic[Event]
}

// New builds a session. The motion system always runs first; any extra
// systems run after it in the order given.
func New(ctx context.Context, id string, config Config, systems ...world.System) *Session {
	store := world.NewStore()
	store.Register(&world.MotionSystem{Bounds: config.Bounds()})
	for _, system := range systems {
		store.Register(system)
	}

	logger := log.With().Str("session", id).Logger()

	return &Session{
		Lifetime:   utils.NewLifetime(ctx),
		id:         id,
		config:     config,
		logger:     logger,
		store:      store,
		transport:  transport.NewRegistry(),
		dispatcher: dispatch.New(world.NewPhysics(store, config.MoveTicks)),
		pending:    make([]action.Action, 0),
		health:     chanlock.New(logger, config.StallTimeout()),
		events:     utils.NewTopic[Event](),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() Config {
	return s.config
}

// Frame is the number of ticks that have completed.
func (s *Session) Frame() uint64 {
	return s.frame.Load()
}

func (s *Session) Players() int {
	return s.transport.Len()
}

func (s *Session) Events() *utils.Topic[Event] {
	return s.events
}

func (s *Session) RetrySlot() dispatch.Slot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.slot
}

func (s *Session) Roster() []world.Ref {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.store.Roster()
}

// Start creates the initial entities and begins ticking every frame.
func (s *Session) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.terminated {
		return ErrTerminated
	}
	if s.started {
		return ErrStarted
	}
	if err := s.config.Populate(s.store); err != nil {
		return fmt.Errorf("failed to populate world: %w", err)
	}

	s.started = true
	s.ticker = ticker.New(s.config.FrameDuration())
	go s.poll(s.ticker.C)
	go s.health.Watch(s.Ctx())

	s.logger.Info().
		Dur("frame", s.config.FrameDuration()).
		Strs("systems", s.store.Systems()).
		Int("entities", len(s.store.Roster())).
		Msg("session started")

	return nil
}

func (s *Session) poll(ticks <-chan time.Time) {
	for {
		select {
		case <-s.Ctx().Done():
			return
		case <-ticks:
			err := s.Tick()
			if errors.Is(err, ErrTerminated) {
				return
			}
			if err != nil {
				s.logger.Error().Err(err).Msg("tick failed")
			}
		}
	}
}

// Submit queues an action for the next tick. It is safe to call from any
// goroutine.
func (s *Session) Submit(a action.Action) {
	s.pendingMutex.Lock()
	s.pending = append(s.pending, a)
	s.pendingMutex.Unlock()
}

func (s *Session) drain() []action.Action {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()
	queued := s.pending
	s.pending = make([]action.Action, 0, len(queued))
	return queued
}

// Pause stops tick delivery without ending the session.
func (s *Session) Pause() {
	if t := s.currentTicker(); t != nil {
		t.Pause()
	}
}

func (s *Session) Resume() {
	if t := s.currentTicker(); t != nil {
		t.Resume()
	}
}

func (s *Session) Paused() bool {
	t := s.currentTicker()
	return t != nil && t.Paused()
}

func (s *Session) currentTicker() *ticker.Ticker {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ticker
}

// Terminate stops any further ticks. A tick that is already running finishes.
func (s *Session) Terminate() {
	s.mutex.Lock()
	if s.terminated {
		s.mutex.Unlock()
		return
	}
	s.terminated = true
	t := s.ticker
	s.mutex.Unlock()

	s.End(ErrTerminated)
	if t != nil {
		t.Stop()
	}

	s.logger.Info().Uint64("frame", s.Frame()).Msg("session terminated")
}

func (s *Session) Terminated() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.terminated
}
