// Package state holds the single process-wide shared state record: robot
// pose, vision landmarks, navigation goal, obstacle map, path, and local
// avoidance bookkeeping. Every module reads and writes through it, and
// UI clients observe it via per-connection ChangeListeners. Grounded on
// original_source/app/state.py.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/thymio-project/brain/internal/gridmap"
	"github.com/thymio-project/brain/internal/signalbus"
)

// State is the combined, process-wide application state. It is created once
// at startup and lives for the whole process; every field write notifies
// registered listeners and every field is safe to read/write concurrently
// through the accessor methods below.
type State struct {
	mu sync.RWMutex

	dirty       *signalbus.Signal
	sceneUpdate *signalbus.Signal

	listeners []*ChangeListener

	// == Filtering ==
	pose         Pose
	hasPose      bool

	// == Navigation ==
	end     Vec2
	hasEnd  bool
	arrived bool

	// == Global Navigation ==
	path              []Vec2
	nextWaypointIndex int
	obstacles         *gridmap.Grid
	extraObstacles    []Obstacle
	boundaryMap       *gridmap.Grid
	computationTime   float64
	optimise          bool

	// == Vision ==
	subdivisions       int
	physicalSize       float64
	lastDetection      Vec2
	hasLastDetection   bool
	lastDetectionFront Vec2
	hasDetectionFront  bool
	lastOrientation    float64

	// == Local Navigation ==
	proxSensors       []float64
	relativeDistances []float64
	reactiveControl   bool
	dist              float64

	// == Debug / telemetry supplements ==
	debugView bool
}

// New constructs a State with the given arena subdivisions and physical
// size, matching original_source/app/state.py's State defaults.
func New(subdivisions int, physicalSizeCM float64) *State {
	return &State{
		dirty:        signalbus.NewSignal(),
		sceneUpdate:  signalbus.NewSignal(),
		subdivisions: subdivisions,
		physicalSize: physicalSizeCM,
	}
}

// notify records a field change into every listener's pending patch. Callers
// must hold s.mu for writing.
func (s *State) notify(field string, value interface{}) {
	for _, l := range s.listeners {
		l.addChange(field, value)
	}
}

// Changed wakes every task waiting on WaitChanged, and is the general
// coarse edge-triggered wakeup (spec's changed()/pose_update signal) used to
// coalesce several mutations into one notification.
func (s *State) Changed() {
	s.dirty.Trigger()
}

// WaitChanged blocks until Changed fires or ctx is done.
func (s *State) WaitChanged(ctx context.Context) {
	s.dirty.Wait(ctx)
}

// WaitChangedTimeout blocks until Changed fires, ctx is done, or timeout
// elapses, for callers that poll with an upper bound on the wait.
func (s *State) WaitChangedTimeout(ctx context.Context, timeout time.Duration) {
	s.dirty.WaitTimeout(ctx, timeout)
}

// SceneUpdate fires the scene_update signal, fired only when the obstacle
// map or goal changes in a way that should re-trigger planning.
func (s *State) SceneUpdate() {
	s.sceneUpdate.Trigger()
}

// Dirty exposes the coarse changed() signal for callers that need the
// Signal itself (the operator server's write pump streams it).
func (s *State) Dirty() *signalbus.Signal {
	return s.dirty
}

// SceneUpdateSignal exposes the scene_update signal for the global planner.
func (s *State) SceneUpdateSignal() *signalbus.Signal {
	return s.sceneUpdate
}

// RegisterListener creates and attaches a new ChangeListener, used when a UI
// client connects.
func (s *State) RegisterListener() *ChangeListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &ChangeListener{state: s}
	s.listeners = append(s.listeners, l)
	return l
}

// UnregisterListener detaches a listener, used on client disconnect.
func (s *State) UnregisterListener(l *ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Pose returns the current estimated pose and whether one has been set yet.
func (s *State) Pose() (Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose, s.hasPose
}

// SetPose stores a new pose estimate and notifies listeners.
func (s *State) SetPose(p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = p
	s.hasPose = true
	s.notify("position", Vec2{X: p.X, Y: p.Y})
	s.notify("orientation", p.Theta)
}

// End returns the navigation goal and whether one has been set.
func (s *State) End() (Vec2, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.end, s.hasEnd
}

// SetEnd stores a new navigation goal, notifies listeners, and triggers
// scene_update (a goal change must re-trigger planning).
func (s *State) SetEnd(end Vec2) {
	s.mu.Lock()
	s.end = end
	s.hasEnd = true
	s.notify("end", end)
	s.mu.Unlock()
	s.SceneUpdate()
}

// ClearEnd removes the navigation goal (arrival: end = None in
// original_source/app/state.py), notifying listeners with a nil-equivalent
// patch value.
func (s *State) ClearEnd() {
	s.mu.Lock()
	s.end = Vec2{}
	s.hasEnd = false
	s.notify("end", nil)
	s.mu.Unlock()
}

// Arrived reports whether the robot has reached its goal.
func (s *State) Arrived() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arrived
}

// SetArrived updates the arrival flag and notifies listeners.
func (s *State) SetArrived(arrived bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrived = arrived
	s.notify("arrived", arrived)
}

// Path returns the current planned path and the index of the next waypoint.
func (s *State) Path() ([]Vec2, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path, s.nextWaypointIndex
}

// SetPath stores a freshly-planned path (and resets the waypoint index to
// 0), and notifies listeners. Does not itself trigger scene_update: the
// path is the planner's output, not an input that should re-trigger it.
func (s *State) SetPath(path []Vec2, computationTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.nextWaypointIndex = 0
	s.computationTime = computationTime
	s.notify("path", path)
	s.notify("next_waypoint_index", 0)
	s.notify("computation_time", computationTime)
}

// AdvanceWaypoint increments the next-waypoint index and notifies listeners.
func (s *State) AdvanceWaypoint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWaypointIndex++
	s.notify("next_waypoint_index", s.nextWaypointIndex)
}

// Obstacles returns the current obstacle grid (nil until SetObstacles is
// first called; Coordinator.Init seeds an all-clear grid).
func (s *State) Obstacles() *gridmap.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obstacles
}

// SetObstacles replaces the obstacle grid and notifies listeners. Callers
// (the coordinator) are responsible for triggering SceneUpdate only when
// the grid differs significantly, per SCENE_THRESHOLD.
func (s *State) SetObstacles(grid *gridmap.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacles = grid
	s.notify("obstacles", grid)
}

// ExtraObstacles returns the extra obstacle rectangles.
func (s *State) ExtraObstacles() []Obstacle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extraObstacles
}

// AddExtraObstacle appends a normalised extra obstacle and triggers
// scene_update.
func (s *State) AddExtraObstacle(o Obstacle) {
	s.mu.Lock()
	normalised := NormalizeObstacle(o)
	s.extraObstacles = append(s.extraObstacles, normalised)
	s.notify("extra_obstacles", s.extraObstacles)
	s.mu.Unlock()
	s.SceneUpdate()
}

// ClearExtraObstacles removes every extra obstacle rectangle and triggers
// scene_update, used by the operator "clear_obstacles" command.
func (s *State) ClearExtraObstacles() {
	s.mu.Lock()
	s.extraObstacles = nil
	s.notify("extra_obstacles", s.extraObstacles)
	s.mu.Unlock()
	s.SceneUpdate()
}

// BoundaryMap returns the inflated map used by the planner.
func (s *State) BoundaryMap() *gridmap.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundaryMap
}

// SetBoundaryMap stores the inflated obstacle map produced by map
// compilation.
func (s *State) SetBoundaryMap(grid *gridmap.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boundaryMap = grid
	s.notify("boundary_map", grid)
}

// Optimise reports whether path optimisation is enabled.
func (s *State) Optimise() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.optimise
}

// SetOptimise toggles path optimisation and notifies listeners.
func (s *State) SetOptimise(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optimise = v
	s.notify("optimise", v)
}

// Subdivisions returns the fixed arena grid subdivision count.
func (s *State) Subdivisions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subdivisions
}

// PhysicalSize returns the arena's physical side length in centimetres.
func (s *State) PhysicalSize() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.physicalSize
}

// LastDetection returns the most recent "back" landmark observation.
func (s *State) LastDetection() (Vec2, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDetection, s.hasLastDetection
}

// LastDetectionFront returns the most recent "front" landmark observation.
func (s *State) LastDetectionFront() (Vec2, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDetectionFront, s.hasDetectionFront
}

// SetLastDetections stores both raw landmark observations and the derived
// orientation, notifying listeners. Supplements the distilled spec with the
// raw per-landmark telemetry original_source/app/state.py exposes (used by
// the debug overlay and diagnostics, not by the EKF itself).
func (s *State) SetLastDetections(back, front Vec2, orientation float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDetection = back
	s.hasLastDetection = true
	s.lastDetectionFront = front
	s.hasDetectionFront = true
	s.lastOrientation = orientation
	s.notify("last_detection", back)
	s.notify("last_detection_front", front)
	s.notify("last_orientation", orientation)
}

// ProxSensors returns the raw proximity sensor readings.
func (s *State) ProxSensors() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proxSensors
}

// RelativeDistances returns the per-sensor translated distances used by
// reactive control.
func (s *State) RelativeDistances() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relativeDistances
}

// SetProxReadings stores the raw and translated proximity readings and
// notifies listeners.
func (s *State) SetProxReadings(raw, relative []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxSensors = raw
	s.relativeDistances = relative
	s.notify("prox_sensors", raw)
	s.notify("relative_distances", relative)
}

// ReactiveControl reports whether LocalAvoidance currently owns motor
// control.
func (s *State) ReactiveControl() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reactiveControl
}

// SetReactiveControl toggles the reactive-control flag and notifies
// listeners.
func (s *State) SetReactiveControl(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactiveControl = v
	s.notify("reactive_control", v)
}

// Dist returns the minimum obstacle distance tracked by local avoidance.
func (s *State) Dist() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dist
}

// SetDist updates the tracked minimum obstacle distance and notifies
// listeners.
func (s *State) SetDist(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dist = d
	s.notify("dist", d)
}

// DebugView reports whether the operator UI's debug overlay is enabled.
// Supplements the distilled spec (original_source exposes a view_path/debug
// toggle consumed by the web UI that the distillation dropped).
func (s *State) DebugView() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debugView
}

// SetDebugView toggles the debug overlay flag and notifies listeners.
func (s *State) SetDebugView(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugView = v
	s.notify("debug_view", v)
}
