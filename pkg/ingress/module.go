package ingress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfoust/tundra/pkg/gameserver"
	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/state"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/mileusna/useragent"
)

const CLIENT_MESSAGE_LIMIT int = 64

var ErrTooSlow = errors.New("client too slow to keep up with messages")

type Settings struct {
	// Inputs above this rate are dropped
	InputsPerSecond float64 `json:"inputsPerSecond" yaml:"inputsPerSecond"`
	InputBurst      int     `json:"inputBurst" yaml:"inputBurst"`
	// How long the client has to say hello
	HelloMillis int `json:"helloMillis" yaml:"helloMillis"`
	// How long a single write may take before the client is dropped
	WriteMillis int `json:"writeMillis" yaml:"writeMillis"`
}

func (s Settings) HelloTimeout() time.Duration {
	return time.Duration(s.HelloMillis) * time.Millisecond
}

func (s Settings) WriteTimeout() time.Duration {
	return time.Duration(s.WriteMillis) * time.Millisecond
}

func (s Settings) Validate() error {
	if s.InputsPerSecond <= 0 {
		return fmt.Errorf("inputsPerSecond must be positive")
	}
	if s.InputBurst < 1 {
		return fmt.Errorf("inputBurst must be at least 1")
	}
	if s.HelloMillis <= 0 || s.WriteMillis <= 0 {
		return fmt.Errorf("helloMillis and writeMillis must be positive")
	}
	return nil
}

type Sessions interface {
	Get(id string) (*gameserver.Session, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, name, token string) (*state.User, error)
}

// Device gives a short description of the client's browser for the logs.
func Device(userAgent string) string {
	ua := useragent.Parse(userAgent)

	kind := "desktop"
	switch {
	case ua.Bot:
		kind = "bot"
	case ua.Tablet:
		kind = "tablet"
	case ua.Mobile:
		kind = "mobile"
	}

	if ua.Name == "" {
		return kind
	}
	if ua.OS == "" {
		return fmt.Sprintf("%s/%s", kind, ua.Name)
	}
	return fmt.Sprintf("%s/%s/%s", kind, ua.Name, ua.OS)
}

// WSClient is one player's websocket as the session sees it. Messages are
// encoded on the caller's goroutine and queued for the writer.
type WSClient struct {
	entity    world.EntityID
	host      string
	device    string
	send      chan []byte
	closeSlow func()
}

func NewWSClient(host string, device string) *WSClient {
	return &WSClient{
		host:      host,
		device:    device,
		send:      make(chan []byte, CLIENT_MESSAGE_LIMIT),
		closeSlow: func() {},
	}
}

func (c *WSClient) Host() string {
	return c.host
}

func (c *WSClient) Device() string {
	return c.device
}

func (c *WSClient) Entity() world.EntityID {
	return c.entity
}

func (c *WSClient) Send(message protocol.Message) error {
	bytes, err := protocol.Encode(message)
	if err != nil {
		return err
	}

	select {
	case c.send <- bytes:
		return nil
	default:
		go c.closeSlow()
		return ErrTooSlow
	}
}
