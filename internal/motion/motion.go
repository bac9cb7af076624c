// Package motion implements the waypoint follower and reactive avoidance
// wheel-command controllers. Grounded on
// original_source/app/motion_control.py.
package motion

import (
	"math"

	"github.com/thymio-project/brain/internal/state"
)

const (
	maxDist       = 8.0
	arrivalDist   = 6.0
	stopDist      = 1.0
	wheelScale    = 2
	tenDegrees    = 10 * math.Pi / 180
	fortyFiveDeg  = 45 * math.Pi / 180
	angularGain   = 80.0
	angularClamp  = 50.0
)

// WheelTargets is a pair of left/right wheel speed targets, already
// integer-truncated for the driver.
type WheelTargets struct {
	Left, Right int
}

// Controller drives wheel targets toward State's current path waypoint,
// switching to LocalAvoidance's reactive override whenever
// State.ReactiveControl is set. One Controller instance is thread-confined
// to the motion control task.
type Controller struct {
	waypoint    state.Vec2
	hasWaypoint bool

	times int
}

// New constructs an idle Controller with no waypoint set.
func New() *Controller {
	return &Controller{}
}

// Update runs one control step: it advances the targeted waypoint if
// necessary, computes wheel targets (waypoint-following or reactive,
// depending on State.ReactiveControl), and returns them. Under reactive
// control ok is always true; otherwise ok=false if there is currently
// nothing to control (no pose, no waypoint).
func (c *Controller) Update(st *state.State) (targets WheelTargets, ok bool) {
	if !c.hasWaypoint {
		c.setNewWaypoint(st, 1)
	}

	if st.ReactiveControl() {
		arrived, left, right := c.controlWithDistance(st)
		_ = arrived
		return WheelTargets{Left: left, Right: right}, true
	}

	arrived, vL, vR, isOK := c.controlPosition(st)
	if !isOK {
		return WheelTargets{}, false
	}

	if arrived {
		c.setNewWaypoint(st, 1)
	}
	return WheelTargets{Left: int(vL), Right: int(vR)}, true
}

// setNewWaypoint advances State's next-waypoint index by indexMore (clamped
// to the last path index) and retargets the controller at that waypoint.
func (c *Controller) setNewWaypoint(st *state.State, indexMore int) {
	path, nextIdx := st.Path()
	if path == nil {
		return
	}

	index := nextIdx + indexMore
	if index > len(path)-1 {
		index = len(path) - 1
	}
	if index < 0 {
		return
	}

	c.waypoint = path[index]
	c.hasWaypoint = true
	for nextIdx < index {
		st.AdvanceWaypoint()
		nextIdx++
	}
}

// controlPosition is the PD-with-fuzzy-angle waypoint follower
// (motion_control.py's controlPosition). Returns ok=false when pose or
// waypoint is unavailable.
func (c *Controller) controlPosition(st *state.State) (arrived bool, vL, vR float64, ok bool) {
	pose, hasPose := st.Pose()
	if !hasPose || !c.hasWaypoint {
		return false, 0, 0, false
	}

	dx := c.waypoint.X - pose.X
	dy := c.waypoint.Y - pose.Y

	dAngle := state.WrapAngle(math.Atan2(dy, dx) - pose.Theta)
	dDist := math.Min(math.Hypot(dx, dy), maxDist)
	st.SetDist(dDist)

	var vForward float64
	switch {
	case math.Abs(dAngle) < tenDegrees:
		vForward = math.Max(dDist, 4) * 5
	case math.Abs(dAngle) < fortyFiveDeg:
		vForward = math.Max(dDist, 4) * 1
	default:
		vForward = 0
	}

	vAngle := clamp(dAngle*angularGain, -angularClamp, angularClamp)

	path, nextIdx := st.Path()
	if math.Abs(dDist) < arrivalDist {
		if math.Abs(dDist) < stopDist && nextIdx == len(path)-1 {
			st.SetArrived(true)
			return true, 0, 0, true
		}
		return true, vForward - vAngle, vForward + vAngle, true
	}

	return false, vForward - vAngle, vForward + vAngle, true
}

// controlWithDistance is the reactive controller (motion_control.py's
// controlWithDistance): runs controlPosition first (to keep advancing the
// waypoint index), then overrides wheel targets by the priority chain over
// calibrated proximity distances.
func (c *Controller) controlWithDistance(st *state.State) (arrived bool, vL, vR int) {
	arrived, _, _, _ = c.controlPosition(st)

	distances := st.RelativeDistances()
	vForward := 30.0
	vAngle := -3.0

	if len(distances) > 0 && distances[0] == -1 {
		c.times += 1 * wheelScale
		switch {
		case c.times < 40:
			vAngle = 0
		case c.times < 80:
			vAngle = -4
		case c.times < 150:
			vAngle = -8
		default:
			vAngle = -15
		}
	}

	if len(distances) >= 5 {
		candidates := []float64{distances[1], distances[3], distances[4]}
		dMin, any := minExcluding(candidates, -1)
		if any && dMin < 5 {
			c.times = 0
			vAngle = -(dMin - 5) * 10
			if dMin < 4 {
				vForward = (dMin - 4) * 10
			}
		}
	}

	if len(distances) > 0 && distances[0] != -1 {
		c.times = 0
		if distances[0] < 5 {
			vAngle = -(distances[0] - 5) * 8
			if distances[0] < 4 {
				vForward = (distances[0] - 4) * 10
			}
		}
	}

	if len(distances) > 2 && distances[2] != -1 && distances[2] < 5 {
		c.times = 0
		vAngle = -(distances[2] - 5) * 10
		if distances[2] < 4 {
			vForward = (distances[2] - 4) * 10
		}
	}

	return arrived, int((vForward + vAngle) * wheelScale), int((vForward - vAngle) * wheelScale)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minExcluding(values []float64, excluded float64) (float64, bool) {
	min := math.Inf(1)
	found := false
	for _, v := range values {
		if v == excluded {
			continue
		}
		if v < min {
			min = v
		}
		found = true
	}
	return min, found
}
