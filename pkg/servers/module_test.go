package servers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cfoust/tundra/pkg/gameserver"
	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/goccy/go-json"
	"github.com/sasha-s/go-deadlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	next int
}

func (c *counter) NewID() string {
	c.next++
	return fmt.Sprintf("s%d", c.next)
}

type discard struct{}

func (discard) Send(protocol.Message) error { return nil }

type presenceCall struct {
	Op      string
	Session string
	Entity  world.EntityID
	Name    string
}

type fakePresence struct {
	mutex deadlock.Mutex
	calls []presenceCall
}

func (p *fakePresence) record(call presenceCall) {
	p.mutex.Lock()
	p.calls = append(p.calls, call)
	p.mutex.Unlock()
}

func (p *fakePresence) Calls() []presenceCall {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]presenceCall(nil), p.calls...)
}

func (p *fakePresence) Join(ctx context.Context, session string, entity world.EntityID, name string) error {
	p.record(presenceCall{"join", session, entity, name})
	return nil
}

func (p *fakePresence) Leave(ctx context.Context, session string, entity world.EntityID) error {
	p.record(presenceCall{"leave", session, entity, ""})
	return nil
}

func (p *fakePresence) Clear(ctx context.Context, session string) error {
	p.record(presenceCall{"clear", session, 0, ""})
	return nil
}

func testConfig() gameserver.Config {
	return gameserver.Config{
		FrameMillis: 5,
		MoveTicks:   2,
		Width:       10,
		Height:      10,
	}
}

func newTestManager(t *testing.T) *Manager {
	manager := NewManager(context.Background(), &counter{})
	t.Cleanup(manager.Shutdown)
	return manager
}

func TestCreateAndGet(t *testing.T) {
	manager := newTestManager(t)

	first, err := manager.Create(Options{Config: testConfig()})
	require.NoError(t, err)
	assert.Equal(t, "s1", first.ID())

	named, err := manager.Create(Options{ID: "lobby", Config: testConfig()})
	require.NoError(t, err)
	assert.Equal(t, "lobby", named.ID())

	_, err = manager.Create(Options{ID: "lobby", Config: testConfig()})
	assert.True(t, errors.Is(err, ErrSessionExists))

	got, err := manager.Get("lobby")
	require.NoError(t, err)
	assert.Same(t, named, got)

	_, err = manager.Get("missing")
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestCreateRejectsBadConfig(t *testing.T) {
	manager := newTestManager(t)
	config := testConfig()
	config.FrameMillis = 0

	_, err := manager.Create(Options{Config: config})
	assert.Error(t, err)
	assert.Empty(t, manager.List())
}

func TestListAndRemove(t *testing.T) {
	manager := newTestManager(t)

	for _, id := range []string{"b", "a", "c"} {
		_, err := manager.Create(Options{ID: id, Config: testConfig()})
		require.NoError(t, err)
	}

	ids := func() []string {
		result := make([]string, 0)
		for _, info := range manager.List() {
			result = append(result, info.ID)
		}
		return result
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids())

	session, err := manager.Get("b")
	require.NoError(t, err)
	require.NoError(t, manager.Remove("b"))
	assert.True(t, session.Terminated())
	assert.Equal(t, []string{"a", "c"}, ids())

	assert.True(t, errors.Is(manager.Remove("b"), ErrNoSession))
}

func TestSessionsTick(t *testing.T) {
	manager := newTestManager(t)
	session, err := manager.Create(Options{Config: testConfig()})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return session.Frame() > 2
	}, time.Second, 5*time.Millisecond)
}

func TestPresenceFollowsEvents(t *testing.T) {
	manager := NewManager(context.Background(), &counter{})
	presence := &fakePresence{}
	manager.SetPresence(presence)

	session, err := manager.Create(Options{ID: "lobby", Config: testConfig()})
	require.NoError(t, err)

	id, err := session.AddPlayer(discard{}, gameserver.Credentials{Name: "alice"})
	require.NoError(t, err)
	require.NoError(t, session.RemovePlayer(id))

	assert.Eventually(t, func() bool {
		return len(presence.Calls()) == 2
	}, time.Second, 5*time.Millisecond)

	manager.Shutdown()

	assert.Eventually(t, func() bool {
		return len(presence.Calls()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []presenceCall{
		{"join", "lobby", id, "alice"},
		{"leave", "lobby", id, ""},
		{"clear", "lobby", 0, ""},
	}, presence.Calls())
}

func TestServeHTTP(t *testing.T) {
	manager := newTestManager(t)
	_, err := manager.Create(Options{ID: "lobby", Config: testConfig()})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, API_PREFIX, nil)
	response := httptest.NewRecorder()
	manager.ServeHTTP(response, request)

	require.Equal(t, http.StatusOK, response.Code)
	var infos []Info
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "lobby", infos[0].ID)

	request = httptest.NewRequest(http.MethodGet, API_PREFIX+"/lobby", nil)
	response = httptest.NewRecorder()
	manager.ServeHTTP(response, request)

	require.Equal(t, http.StatusOK, response.Code)
	var info Info
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &info))
	assert.Equal(t, "lobby", info.ID)

	request = httptest.NewRequest(http.MethodGet, API_PREFIX+"/nope", nil)
	response = httptest.NewRecorder()
	manager.ServeHTTP(response, request)
	assert.Equal(t, http.StatusNotFound, response.Code)

	request = httptest.NewRequest(http.MethodPost, API_PREFIX, nil)
	response = httptest.NewRecorder()
	manager.ServeHTTP(response, request)
	assert.Equal(t, http.StatusMethodNotAllowed, response.Code)
}

func TestSessionsEndWithManagerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	manager := NewManager(ctx, &counter{})
	t.Cleanup(manager.Shutdown)

	session, err := manager.Create(Options{Config: testConfig()})
	require.NoError(t, err)
	assert.False(t, session.IsDone())

	cancel()
	assert.Eventually(t, session.IsDone, time.Second, 5*time.Millisecond)
}
