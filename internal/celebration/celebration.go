// Package celebration plays the arrival sequence once the robot reaches its
// goal: a half-turn in place, then, if a second "top" Thymio is connected, an
// arm-drop flourish. Grounded on original_source/app/christmas.py.
package celebration

import (
	"context"
	"time"

	"github.com/thymio-project/brain/internal/driverbus"
)

// Timings, in seconds in the original; here as time.Duration, per
// christmas.py's WAIT_TIME and config.py's DROP_TIME/HALF_TURN_TIME.
const (
	waitBetweenArmMoves = 3 * time.Second
)

// Speeds are raw Thymio motor target units, matching christmas.py exactly
// (they are driver-unit constants, not physical ones, so they are not
// routed through driverbus.ThymioToCM).
type Speeds struct {
	DropSpeed      int
	DropTime       time.Duration
	HalfTurnSpeed  int
	HalfTurnTime   time.Duration
}

// DefaultSpeeds mirrors config.py's DROP_SPEED/DROP_TIME/HALF_TURN_SPEED/
// HALF_TURN_TIME.
func DefaultSpeeds() Speeds {
	return Speeds{
		DropSpeed:     200,
		DropTime:      2 * time.Second,
		HalfTurnSpeed: 150,
		HalfTurnTime:  1500 * time.Millisecond,
	}
}

// Celebration drives the base robot's wheels and, when present, the top
// robot's arm motors to perform the arrival sequence.
type Celebration struct {
	node    driverbus.Node // base robot: drives the half-turn
	nodeTop driverbus.Node // optional second robot: drives the arm, may be nil
	speeds  Speeds
	sleep   func(context.Context, time.Duration) error
}

// New constructs a Celebration. node is the base robot's driver connection;
// nodeTop is the optional top robot's connection for the arm drop (nil if
// none is attached, matching ctx.node_top's Optional type).
func New(node driverbus.Node, nodeTop driverbus.Node) *Celebration {
	return &Celebration{node: node, nodeTop: nodeTop, speeds: DefaultSpeeds(), sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopThymio zeroes the rotation speed, used when a reactive or arrival
// event needs to cut motion immediately (christmas.py's stop_thymio).
func (c *Celebration) StopThymio() error {
	return c.setRotateSpeed(0)
}

// DoHalfTurn spins the base robot in place for HalfTurnTime, then stops.
func (c *Celebration) DoHalfTurn(ctx context.Context) error {
	if err := c.setRotateSpeed(c.speeds.HalfTurnSpeed); err != nil {
		return err
	}
	if err := c.sleep(ctx, c.speeds.HalfTurnTime); err != nil {
		return err
	}
	return c.setRotateSpeed(0)
}

// DropBauble runs the arm-drop-and-return sequence on the top robot. It is
// a no-op if no top robot is attached, matching christmas.py's
// `if self.ctx.node_top is None: return` guard on every arm call.
func (c *Celebration) DropBauble(ctx context.Context) error {
	if c.nodeTop == nil {
		return nil
	}

	steps := []struct {
		speed int
		wait  time.Duration
	}{
		{c.speeds.DropSpeed, c.speeds.DropTime},
		{0, waitBetweenArmMoves},
		{-c.speeds.DropSpeed, c.speeds.DropTime},
		{0, 0},
	}

	for _, step := range steps {
		if err := c.setArmSpeed(step.speed); err != nil {
			return err
		}
		if step.wait > 0 {
			if err := c.sleep(ctx, step.wait); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Celebration) setArmSpeed(speed int) error {
	if c.nodeTop == nil {
		return nil
	}
	return c.nodeTop.SetVariables(map[string][]int{
		"motor.left.target":  {speed},
		"motor.right.target": {speed},
	})
}

func (c *Celebration) setRotateSpeed(speed int) error {
	return c.node.SetVariables(map[string][]int{
		"motor.left.target":  {speed},
		"motor.right.target": {-speed},
	})
}
