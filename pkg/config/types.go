package config

import (
	"fmt"

	"github.com/cfoust/tundra/pkg/gameserver"
	"github.com/cfoust/tundra/pkg/ingress"
	"github.com/cfoust/tundra/pkg/state"
)

type Server struct {
	Host string `json:"host" yaml:"host" env:"TUNDRA_HOST"`
	Port int    `json:"port" yaml:"port" env:"TUNDRA_PORT"`
	// Sessions created when the server starts
	Sessions []string `json:"sessions" yaml:"sessions"`
	// How long to wait for connections to drain on shutdown
	ShutdownMillis int `json:"shutdownMillis" yaml:"shutdownMillis"`
}

type Storage struct {
	// Player accounts are only checked when this is set
	DBPath string              `json:"dbPath" yaml:"dbPath" env:"TUNDRA_DB_PATH"`
	Redis  state.RedisSettings `json:"redis" yaml:"redis"`
}

type Metrics struct {
	StatsdAddress string   `json:"statsdAddress" yaml:"statsdAddress" env:"TUNDRA_STATSD_ADDR"`
	Tags          []string `json:"tags" yaml:"tags"`
}

type Config struct {
	Server  Server            `json:"server" yaml:"server"`
	Game    gameserver.Config `json:"game" yaml:"game"`
	Ingress ingress.Settings  `json:"ingress" yaml:"ingress"`
	Storage Storage           `json:"storage" yaml:"storage"`
	Metrics Metrics           `json:"metrics" yaml:"metrics"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	seen := make(map[string]struct{})
	for _, id := range c.Server.Sessions {
		if id == "" {
			return fmt.Errorf("server.sessions cannot contain an empty id")
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("server.sessions lists %s twice", id)
		}
		seen[id] = struct{}{}
	}

	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}

	if err := c.Ingress.Validate(); err != nil {
		return fmt.Errorf("ingress: %w", err)
	}

	return nil
}
