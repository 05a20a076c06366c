package gameserver

import (
	"fmt"
	"time"

	"github.com/cfoust/tundra/pkg/world"
)

type EntitySpec struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
	X    int32  `json:"x" yaml:"x"`
	Y    int32  `json:"y" yaml:"y"`
}

type Config struct {
	// How long one frame lasts
	FrameMillis int `json:"frameMillis" yaml:"frameMillis" env:"TUNDRA_FRAME_MS"`
	// How many ticks it takes to step one cell
	MoveTicks uint32       `json:"moveTicks" yaml:"moveTicks"`
	Width     int32        `json:"width" yaml:"width"`
	Height    int32        `json:"height" yaml:"height"`
	SpawnX    int32        `json:"spawnX" yaml:"spawnX"`
	SpawnY    int32        `json:"spawnY" yaml:"spawnY"`
	Entities  []EntitySpec `json:"entities" yaml:"entities"`
	// A tick that runs longer than this is reported as stalled
	StallMillis int `json:"stallMillis" yaml:"stallMillis"`
}

func (c Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameMillis) * time.Millisecond
}

func (c Config) StallTimeout() time.Duration {
	return time.Duration(c.StallMillis) * time.Millisecond
}

func (c Config) Bounds() world.Bounds {
	return world.Bounds{Width: c.Width, Height: c.Height}
}

func (c Config) Spawn() world.Position {
	return c.Bounds().Clamp(world.Position{X: c.SpawnX, Y: c.SpawnY})
}

func (c Config) Validate() error {
	if c.FrameMillis <= 0 {
		return fmt.Errorf("frameMillis must be positive, got %d", c.FrameMillis)
	}
	if c.MoveTicks < 1 {
		return fmt.Errorf("moveTicks must be at least 1")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("world must have a positive size, got %dx%d", c.Width, c.Height)
	}
	for i, entity := range c.Entities {
		if entity.Type == "" {
			return fmt.Errorf("entity %d has no type", i)
		}
	}
	return nil
}

// Populate creates the entities the config lists.
func (c Config) Populate(store *world.Store) error {
	bounds := c.Bounds()
	for _, spec := range c.Entities {
		components := []world.Component{
			bounds.Clamp(world.Position{X: spec.X, Y: spec.Y}),
		}
		if spec.Name != "" {
			components = append(components, world.Name{Value: spec.Name})
		}
		store.CreateEntity(world.EntityType(spec.Type), components...)
	}
	return nil
}
