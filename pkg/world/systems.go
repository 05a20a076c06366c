package world

import (
	"fmt"
)

// Bounds is the playable area. Cells run from 0 to Width-1 and 0 to Height-1.
type Bounds struct {
	Width  int32
	Height int32
}

func (b Bounds) Clamp(p Position) Position {
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if b.Width > 0 && p.X >= b.Width {
		p.X = b.Width - 1
	}
	if b.Height > 0 && p.Y >= b.Height {
		p.Y = b.Height - 1
	}
	return p
}

// Physics starts moves. The moves themselves are carried out by the
// MotionSystem over the following ticks.
type Physics struct {
	store     *Store
	moveTicks uint32
}

func NewPhysics(store *Store, moveTicks uint32) *Physics {
	if moveTicks == 0 {
		moveTicks = 1
	}
	return &Physics{
		store:     store,
		moveTicks: moveTicks,
	}
}

func (p *Physics) IsMoving(id EntityID) (bool, error) {
	if !p.store.Exists(id) {
		return false, fmt.Errorf("moving %d: %w", id, ErrNoEntity)
	}
	return p.store.IsBusy(id), nil
}

func (p *Physics) BeginMove(id EntityID, direction Direction) error {
	if !direction.Valid() {
		return fmt.Errorf("invalid %s", direction)
	}
	return p.store.Set(id, Motion{
		Direction: direction,
		Remaining: p.moveTicks,
	})
}

// MotionSystem counts down every Motion and, on arrival, steps the entity's
// Position one cell and drops the Motion.
type MotionSystem struct {
	Bounds Bounds
}

func (m *MotionSystem) Name() string {
	return "motion"
}

func (m *MotionSystem) Update(store *Store) error {
	for _, id := range store.With(MotionKind) {
		component, _ := store.Get(id, MotionKind)
		motion := component.(Motion)

		if motion.Remaining > 1 {
			motion.Remaining--
			if err := store.Set(id, motion); err != nil {
				return err
			}
			continue
		}

		if component, ok := store.Get(id, PositionKind); ok {
			position := component.(Position)
			dx, dy := motion.Direction.Delta()
			position.X += dx
			position.Y += dy
			if err := store.Set(id, m.Bounds.Clamp(position)); err != nil {
				return err
			}
		}

		if err := store.Unset(id, MotionKind); err != nil {
			return err
		}
	}
	return nil
}
