package presence

import (
	"context"
	"encoding/json"
	"log/slog"

	"proximityd/internal/domain"
	"proximityd/internal/infra/config"
)

// Actuator writes an output level to some physical device.
type Actuator interface {
	SetLevel(level int) error
}

// FeedbackController ramps an actuator level toward its bound each publish
// tick: up while anyone is near, down once everyone is far. The ramp-down
// step is larger than the ramp-up step.
type FeedbackController struct {
	cfg   config.ActuatorConfig
	act   Actuator
	bus   domain.EventBus
	log   *slog.Logger
	level int
}

// NewFeedbackController creates a controller starting at the minimum level.
// act may be nil, in which case stepping only tracks the level. bus may be
// nil (no level events).
func NewFeedbackController(cfg config.ActuatorConfig, act Actuator, bus domain.EventBus, log *slog.Logger) *FeedbackController {
	return &FeedbackController{
		cfg:   cfg,
		act:   act,
		bus:   bus,
		log:   log,
		level: cfg.MinLevel,
	}
}

// Level returns the controller's current output level.
func (c *FeedbackController) Level() int { return c.level }

// Step advances the level one tick and writes the actuator only when the
// level actually changed. A failed write is logged and the level keeps its
// new value; the hardware catches up on a later change.
func (c *FeedbackController) Step(ctx context.Context, anyoneNear bool) {
	next := c.level
	if anyoneNear {
		next = min(c.level+c.cfg.UpStep, c.cfg.MaxLevel)
	} else {
		next = max(c.level-c.cfg.DownStep, c.cfg.MinLevel)
	}
	if next == c.level {
		return
	}
	c.level = next

	if c.act != nil {
		if err := c.act.SetLevel(next); err != nil {
			c.log.Warn("actuator write failed", "level", next, "error", err)
		}
	}

	if c.bus != nil {
		payload, err := json.Marshal(map[string]int{"level": next})
		if err == nil {
			c.bus.Publish(ctx, domain.Event{Type: domain.EventActuatorLevel, Payload: payload})
		}
	}
}
