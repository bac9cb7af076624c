package localnav

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/thymio-project/brain/internal/state"
)

// Entry/exit timings for reactive control, per spec.md 4.6. Supersedes
// local_navigation.py's shorter 1.5s single-stage grace period; see
// DESIGN.md's Open Questions for why the spec's two-stage timing governs.
const (
	entryThresholdCM = 3.5
	replanAfter      = 7 * time.Second
	resumeAfter      = 8 * time.Second
)

// frontFacingCount is the prox.horizontal index range excluding the two
// rear sensors (indices 5, 6), per spec.md 4.6's "excluding back sensors"
// entry condition.
const frontFacingCount = 5

// Controller converts raw proximity readings into distances and drives the
// reactive-avoidance entry/exit state machine described in spec.md 4.6.
type Controller struct {
	clock clock.Clock

	active     bool
	enteredAt  time.Time
	replanSent bool
}

// New constructs a Controller. clk lets tests substitute a mock clock.
func New(clk clock.Clock) *Controller {
	return &Controller{clock: clk}
}

// ProcessEvent handles a driver prox.horizontal event: stores the raw and
// translated readings on st, fires the coarse changed() signal, and
// re-evaluates the reactive entry/exit state machine. Mirrors
// local_navigation.py's process_event.
func (c *Controller) ProcessEvent(st *state.State, raw []float64) {
	relative := DistanceArray(raw)
	st.SetProxReadings(raw, relative)
	st.Changed()
	c.Evaluate(st)
}

// Evaluate runs one step of the entry/exit state machine against the
// current relative distances on st.
func (c *Controller) Evaluate(st *state.State) {
	distances := st.RelativeDistances()

	minFront := math.Inf(1)
	for i := 0; i < frontFacingCount && i < len(distances); i++ {
		d := distances[i]
		if d == -1 {
			continue
		}
		if d < minFront {
			minFront = d
		}
	}

	if minFront < entryThresholdCM {
		if !c.active {
			c.active = true
			st.SetReactiveControl(true)
		}
		c.enteredAt = c.clock.Now()
		c.replanSent = false
		return
	}

	if !c.active {
		return
	}

	elapsed := c.clock.Now().Sub(c.enteredAt)

	if elapsed >= replanAfter && !c.replanSent {
		st.SceneUpdate()
		c.replanSent = true
	}

	if elapsed >= resumeAfter {
		st.SetReactiveControl(false)
		st.AdvanceWaypoint()
		c.active = false
	}
}

// Active reports whether the controller currently considers itself in
// reactive mode (mirrors State.ReactiveControl but without the State read
// lock, for tests).
func (c *Controller) Active() bool {
	return c.active
}
