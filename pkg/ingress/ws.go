package ingress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cfoust/tundra/pkg/game/action"
	"github.com/cfoust/tundra/pkg/gameserver"
	"github.com/cfoust/tundra/pkg/protocol"
	"github.com/cfoust/tundra/pkg/state"
	"github.com/cfoust/tundra/pkg/world"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const WS_PREFIX = "/ws/"

var errRejected = errors.New("client rejected")

type WSIngress struct {
	sessions Sessions
	accounts Authenticator
	settings Settings
}

// NewWSIngress accepts players into sessions. accounts may be nil, in which
// case any well-formed name is let in.
func NewWSIngress(sessions Sessions, accounts Authenticator, settings Settings) *WSIngress {
	return &WSIngress{
		sessions: sessions,
		accounts: accounts,
		settings: settings,
	}
}

func WriteTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageBinary, msg)
}

func (server *WSIngress) reject(ctx context.Context, c *websocket.Conn, logger zerolog.Logger, reason string) error {
	logger.Info().Str("reason", reason).Msg("client rejected")

	bytes, err := protocol.Encode(protocol.RejectedMessage(reason))
	if err != nil {
		return err
	}
	if err := WriteTimeout(ctx, server.settings.WriteTimeout(), c, bytes); err != nil {
		return err
	}

	c.Close(websocket.StatusPolicyViolation, reason)
	return errRejected
}

// hello waits for the client to introduce itself.
func (server *WSIngress) hello(ctx context.Context, c *websocket.Conn) (protocol.Hello, error) {
	ctx, cancel := context.WithTimeout(ctx, server.settings.HelloTimeout())
	defer cancel()

	typ, data, err := c.Read(ctx)
	if err != nil {
		return protocol.Hello{}, err
	}
	if typ != websocket.MessageBinary {
		return protocol.Hello{}, fmt.Errorf("expected a binary message")
	}

	message, err := protocol.Decode(data)
	if err != nil {
		return protocol.Hello{}, err
	}

	hello, ok := message.(protocol.Hello)
	if !ok {
		return protocol.Hello{}, fmt.Errorf("expected %s, got %s", protocol.HelloOp, message.Type())
	}
	return hello, nil
}

func (server *WSIngress) authenticate(ctx context.Context, hello protocol.Hello) (string, error) {
	if server.accounts == nil {
		return state.CleanName(hello.Name)
	}

	user, err := server.accounts.Authenticate(ctx, hello.Name, hello.Token)
	if err != nil {
		return "", err
	}
	return user.Name, nil
}

func removePlayer(session *gameserver.Session, id world.EntityID, logger zerolog.Logger) {
	err := session.RemovePlayer(id)
	if err != nil && !errors.Is(err, gameserver.ErrTerminated) {
		logger.Warn().Err(err).Uint32("entity", uint32(id)).Msg("failed to remove player")
	}
}

func (server *WSIngress) HandleClient(ctx context.Context, c *websocket.Conn, sessionID string, host string, device string) error {
	logger := log.With().
		Str("session", sessionID).
		Str("host", host).
		Str("device", device).
		Logger()

	session, err := server.sessions.Get(sessionID)
	if err != nil {
		return server.reject(ctx, c, logger, "no such session")
	}

	hello, err := server.hello(ctx, c)
	if err != nil {
		logger.Debug().Err(err).Msg("bad hello")
		return server.reject(ctx, c, logger, "expected hello")
	}

	name, err := server.authenticate(ctx, hello)
	if errors.Is(err, state.ErrBadName) {
		return server.reject(ctx, c, logger, "invalid name")
	}
	if errors.Is(err, state.ErrBadCredentials) {
		return server.reject(ctx, c, logger, "name is taken")
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to authenticate")
		return server.reject(ctx, c, logger, "could not authenticate")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Players are dropped when their session ends
	go func() {
		select {
		case <-session.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	client := NewWSClient(host, device)
	client.closeSlow = func() {
		c.Close(websocket.StatusPolicyViolation, ErrTooSlow.Error())
	}

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case msg := <-client.send:
				if err := WriteTimeout(ctx, server.settings.WriteTimeout(), c, msg); err != nil {
					writeErr <- err
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	id, err := session.AddPlayer(client, gameserver.Credentials{Name: name})
	if errors.Is(err, gameserver.ErrTerminated) {
		return server.reject(ctx, c, logger, "session ended")
	}
	if err != nil {
		// The entity may exist even if a send failed
		if id != 0 {
			removePlayer(session, id, logger)
		}
		return err
	}
	client.entity = id

	defer func() {
		removePlayer(session, id, logger)
	}()

	if err := client.Send(protocol.WelcomeMessage(id, session.ID())); err != nil {
		return err
	}

	logger = logger.With().Uint32("entity", uint32(id)).Str("name", name).Logger()
	logger.Info().Msg("client joined")

	limiter := rate.NewLimiter(
		rate.Limit(server.settings.InputsPerSecond),
		server.settings.InputBurst,
	)

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			select {
			case err = <-writeErr:
				logger.Warn().Err(err).Msg("client missed write timeout; disconnecting")
			default:
			}
			logger.Info().Msg("client left")
			return err
		}
		if typ != websocket.MessageBinary {
			continue
		}

		message, err := protocol.Decode(data)
		if err != nil {
			logger.Debug().Err(err).Msg("undecodable message")
			continue
		}

		switch message := message.(type) {
		case protocol.Input:
			if !message.Direction.Valid() {
				logger.Debug().Uint8("direction", uint8(message.Direction)).Msg("invalid direction")
				continue
			}
			if !limiter.Allow() {
				continue
			}
			session.Submit(action.Move{
				Source:    id,
				Direction: message.Direction,
			})
		default:
			logger.Debug().Stringer("op", message.Type()).Msg("unexpected message")
		}
	}
}

func SessionFromPath(path string) string {
	return strings.Trim(strings.TrimPrefix(path, WS_PREFIX), "/")
}

func (server *WSIngress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})

	if err != nil {
		log.Error().Err(err).Msg("error accepting client connection")
		return
	}

	defer c.Close(websocket.StatusInternalError, "operational fault during relay")

	// We use nginx for ingress everywhere, so check this first
	hostname := r.RemoteAddr

	original, ok := r.Header["X-Forwarded-For"]
	if ok {
		hostname = original[0]
	}

	err = server.HandleClient(
		r.Context(),
		c,
		SessionFromPath(r.URL.Path),
		hostname,
		Device(r.UserAgent()),
	)
	if errors.Is(err, errRejected) || errors.Is(err, context.Canceled) {
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("client connection failed")
		return
	}
}
