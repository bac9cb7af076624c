// Package driverbus mediates between the Thymio wire driver and the
// coordination kernel: a Node contract for reading/writing driver
// variables, unit conversion, and a panic-safe event dispatch wrapper.
// Grounded on original_source/app/context.py (ClientAsyncCacheNode usage)
// and app/utils/event_processor.py / app/utils/module.py.
package driverbus

import (
	"github.com/thymio-project/brain/internal/logging"
)

// ThymioToCM converts a raw Thymio wheel-speed unit into cm/s; the same
// value as brainconfig.Default's ThymioToCM.
const ThymioToCM = 3.85e-2

// Node is the driver transport contract: set motor/actuator targets and
// subscribe to variable-change events, mirroring tdmclient's
// ClientAsyncCacheNode surface as used by context.py.
type Node interface {
	// SetVariables writes one or more driver variables (e.g.
	// "motor.left.target") to the robot.
	SetVariables(vars map[string][]int) error
	// AddVariablesChangedListener registers fn to be called whenever the
	// driver reports new variable values.
	AddVariablesChangedListener(fn func(variables map[string]interface{}))
	// RemoveVariablesChangedListener deregisters a previously added
	// listener.
	RemoveVariablesChangedListener(fn func(variables map[string]interface{}))
}

// EventProcessor is implemented by modules that want to react to driver
// variable-change events (e.g. EKF reads motor speeds, LocalAvoidance reads
// the proximity array).
type EventProcessor interface {
	ProcessEvent(variables map[string]interface{})
}

// Subscribe wires an EventProcessor to node, wrapping the callback so a
// panic inside ProcessEvent is caught and logged rather than propagating
// into the driver's own event loop (event_processor.py's exception
// swallowing, generalised to Go's panic/recover). Returns an unsubscribe
// function.
func Subscribe(node Node, processor EventProcessor, logger logging.Logger) func() {
	listener := func(variables map[string]interface{}) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("driverbus: process_event panicked", "panic", r)
			}
		}()
		processor.ProcessEvent(variables)
	}

	node.AddVariablesChangedListener(listener)
	return func() {
		node.RemoveVariablesChangedListener(listener)
	}
}

// WheelSpeeds extracts and converts the left/right motor speed readings
// from a variables event map, or ok=false if either is absent.
func WheelSpeeds(variables map[string]interface{}) (left, right float64, ok bool) {
	l, lok := firstFloat(variables, "motor.left.speed")
	r, rok := firstFloat(variables, "motor.right.speed")
	if !lok || !rok {
		return 0, 0, false
	}
	return l * ThymioToCM, r * ThymioToCM, true
}

// ProxHorizontal extracts the 7-element prox.horizontal array, or ok=false
// if absent or malformed.
func ProxHorizontal(variables map[string]interface{}) ([]float64, bool) {
	raw, ok := variables["prox.horizontal"]
	if !ok {
		return nil, false
	}
	values, ok := raw.([]int)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, true
}

func firstFloat(variables map[string]interface{}, key string) (float64, bool) {
	raw, ok := variables[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case []int:
		if len(v) == 0 {
			return 0, false
		}
		return float64(v[0]), true
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
