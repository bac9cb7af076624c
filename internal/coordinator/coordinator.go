// Package coordinator runs the top-level ~10Hz loop that ties the vision
// pipeline, the pose filter, local avoidance and the motion controller
// together, and drives the arrival celebration. Grounded on
// original_source/app/big_brain.py's BigBrain.
package coordinator

import (
	"context"
	"math"
	"time"

	"github.com/thymio-project/brain/internal/celebration"
	"github.com/thymio-project/brain/internal/driverbus"
	"github.com/thymio-project/brain/internal/ekf"
	"github.com/thymio-project/brain/internal/gridmap"
	"github.com/thymio-project/brain/internal/logging"
	"github.com/thymio-project/brain/internal/motion"
	"github.com/thymio-project/brain/internal/state"
	"github.com/thymio-project/brain/internal/vision"
)

// Config holds the coordinator's tunables, named after big_brain.py's
// module-level constants (POSITION_THRESHOLD, SCENE_THRESHOLD,
// UPDATE_FREQUENCY) and config.py's USE_LIVE_CAMERA.
type Config struct {
	SceneThreshold int64
	LoopPeriod     time.Duration
	UseLiveCamera  bool
}

// Coordinator is the top-level loop. It owns one instance of every
// per-cycle module and coordinates them through State.
type Coordinator struct {
	state   *state.State
	filter  *ekf.Filter
	vision  *vision.Pipeline
	motion  *motion.Controller
	node    driverbus.Node
	nodeTop driverbus.Node
	chime   *celebration.Celebration
	logger  logging.Logger
	cfg     Config

	backRejecter        *OutlierRejecter[gridmap.Point]
	frontRejecter       *OutlierRejecter[gridmap.Point]
	orientationRejecter *OutlierRejecter[float64]
}

// New constructs a Coordinator wiring together the already-constructed
// per-module instances. node/nodeTop may be nil in tests that never drive
// the motors directly (e.g. planner-only scenarios).
func New(st *state.State, filter *ekf.Filter, pipeline *vision.Pipeline, motionCtrl *motion.Controller, node, nodeTop driverbus.Node, logger logging.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		state:   st,
		filter:  filter,
		vision:  pipeline,
		motion:  motionCtrl,
		node:    node,
		nodeTop: nodeTop,
		chime:   celebration.New(node, nodeTop),
		logger:  logger,
		cfg:     cfg,

		backRejecter:        NewOutlierRejecter[gridmap.Point](2, 5, Vec2Distance),
		frontRejecter:       NewOutlierRejecter[gridmap.Point](2, 5, Vec2Distance),
		orientationRejecter: NewOutlierRejecter[float64](0.1, 5, FloatDistance),
	}
}

// Init seeds State's obstacle grid to all-clear, mirroring big_brain.py's
// init() (`self.ctx.state.obstacles = np.zeros(...)`).
func (c *Coordinator) Init() {
	c.state.SetObstacles(gridmap.NewGrid(c.state.Subdivisions()))
}

// Run blocks, executing one coordination cycle every LoopPeriod, until ctx
// is cancelled. Mirrors big_brain.py's `while True: ...; await
// sleep(UPDATE_FREQUENCY)` loop.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.LoopPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Tick runs one coordination cycle: ingest a vision observation (if any),
// check for arrival and run the celebration, and drive the motors from the
// motion controller's targets.
func (c *Coordinator) Tick(ctx context.Context) error {
	if err := c.ingestVision(); err != nil && err != vision.ErrNoFrame {
		c.logger.Warnw("coordinator: vision frame failed", "error", err)
	}

	if c.state.Arrived() {
		if err := c.celebrate(ctx); err != nil {
			return err
		}
	}

	if c.motion != nil && c.node != nil {
		targets, ok := c.motion.Update(c.state)
		if ok {
			if err := c.writeWheelTargets(targets); err != nil {
				return err
			}
		}
	}

	return nil
}

// ingestVision pulls one frame through the vision pipeline, filters the
// landmark readings through the outlier rejecters, feeds the result into
// the EKF, and updates State's obstacle map if the change is significant.
// Mirrors big_brain.py's per-iteration `obs = modules.vision.next()` block.
func (c *Coordinator) ingestVision() error {
	if c.vision == nil {
		return nil
	}

	obs, err := c.vision.Next()
	if err != nil {
		return err
	}

	back, _ := c.backRejecter.Next(obs.Back)
	front, _ := c.frontRejecter.Next(obs.Front)
	orientation, _ := c.orientationRejecter.Next(angle(back, front))

	_, hasPose := c.state.Pose()
	if c.cfg.UseLiveCamera || !hasPose {
		z := state.Pose{X: back.X, Y: back.Y, Theta: orientation}
		if c.filter != nil {
			c.filter.Update(z)
			c.state.SetPose(c.filter.Pose())
		} else {
			c.state.SetPose(z)
		}
	}

	c.state.SetLastDetections(state.Vec2{X: back.X, Y: back.Y}, state.Vec2{X: front.X, Y: front.Y}, orientation)
	c.state.Changed()

	if c.significantChange(obs.Obstacles) {
		c.state.SetObstacles(obs.Obstacles)
		c.state.SceneUpdate()
	}

	return nil
}

// significantChange reports whether obstacles differs from State's current
// obstacle grid by more than SceneThreshold, mirroring big_brain.py's
// significant_change/matrix_distance pair (generalised from int8 numpy sum
// to gridmap.Grid.L1Distance's widened accumulator).
func (c *Coordinator) significantChange(obstacles *gridmap.Grid) bool {
	current := c.state.Obstacles()
	if current == nil {
		return false
	}
	return current.L1Distance(obstacles) > c.cfg.SceneThreshold
}

// celebrate runs the arrival sequence and clears the path/goal, mirroring
// big_brain.py's arrival block.
func (c *Coordinator) celebrate(ctx context.Context) error {
	if err := c.chime.StopThymio(); err != nil {
		return err
	}

	c.state.ClearEnd()
	c.state.SetPath(nil, 0)
	c.state.SetArrived(false)
	c.state.Changed()

	if err := c.chime.DoHalfTurn(ctx); err != nil {
		return err
	}
	if c.nodeTop != nil {
		if err := c.chime.DropBauble(ctx); err != nil {
			return err
		}
	}
	return nil
}

// writeWheelTargets pushes WheelTargets onto the driver node, the transport
// step the motion controller's transport-free Update leaves to the caller.
func (c *Coordinator) writeWheelTargets(targets motion.WheelTargets) error {
	return c.node.SetVariables(map[string][]int{
		"motor.left.target":  {targets.Left},
		"motor.right.target": {targets.Right},
	})
}

// angle returns the heading, in radians, of the vector from a to b,
// mirroring big_brain.py's _angle (`atan2(p2[1]-p1[1], p2[0]-p1[0])`).
func angle(a, b gridmap.Point) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}
