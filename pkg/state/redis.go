package state

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cfoust/tundra/pkg/world"

	"github.com/go-redis/redis/v9"
)

type RedisSettings struct {
	Address  string `json:"address" yaml:"address" env:"TUNDRA_REDIS_ADDR"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

const (
	PRESENCE_PREFIX      = "presence-"
	KEY_SESSION_PRESENCE = PRESENCE_PREFIX + "session-%s"
)

// Presence records which players are online in each session so other
// processes can see it.
type Presence struct {
	client *redis.Client
}

func NewPresence(settings RedisSettings) *Presence {
	return &Presence{
		client: redis.NewClient(&redis.Options{
			Addr:     settings.Address,
			Password: settings.Password,
			DB:       settings.DB,
		}),
	}
}

func (p *Presence) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Presence) Join(ctx context.Context, session string, entity world.EntityID, name string) error {
	return p.client.HSet(
		ctx,
		fmt.Sprintf(KEY_SESSION_PRESENCE, session),
		strconv.FormatUint(uint64(entity), 10),
		name,
	).Err()
}

func (p *Presence) Leave(ctx context.Context, session string, entity world.EntityID) error {
	return p.client.HDel(
		ctx,
		fmt.Sprintf(KEY_SESSION_PRESENCE, session),
		strconv.FormatUint(uint64(entity), 10),
	).Err()
}

// Online maps each player entity in the session to its name.
func (p *Presence) Online(ctx context.Context, session string) (map[world.EntityID]string, error) {
	values, err := p.client.HGetAll(ctx, fmt.Sprintf(KEY_SESSION_PRESENCE, session)).Result()
	if err != nil {
		return nil, err
	}

	online := make(map[world.EntityID]string, len(values))
	for key, name := range values {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad presence key %q: %w", key, err)
		}
		online[world.EntityID(id)] = name
	}
	return online, nil
}

func (p *Presence) Clear(ctx context.Context, session string) error {
	return p.client.Del(ctx, fmt.Sprintf(KEY_SESSION_PRESENCE, session)).Err()
}

func (p *Presence) Close() error {
	return p.client.Close()
}
