// Package wsserver implements the operator WebSocket protocol: a JSON
// message stream that pushes state snapshots/diffs out and accepts
// navigation/debug commands in. Grounded on original_source/app/server.py's
// websocket_handler/handle_message, with the upgrade/ping-pong/write-pump
// machinery grounded on niceyeti-tabular/tabular/server/server.go.
package wsserver

import (
	"encoding/json"
	"fmt"

	"github.com/thymio-project/brain/internal/state"
)

// outbound message type tags, matching spec.md §6 verbatim.
const (
	typeState = "state"
	typePatch = "patch"
	typePong  = "pong"
	typeMsg   = "msg"
)

// inbound message type tags, matching spec.md §6 verbatim.
const (
	typePing           = "ping"
	typeSetPosition    = "set_position"
	typeSetEnd         = "set_end"
	typeAddObstacle    = "add_obstacle"
	typeClearObstacles = "clear_obstacles"
	typeOptimise       = "optimise"
	typeDebug          = "debug"
	typeStop           = "stop"
)

// outboundEnvelope is the wire shape for every server-to-client message.
type outboundEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEnvelope is the wire shape for every client-to-server message; Data
// is left raw so each command can decode its own payload shape.
type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type positionPayload struct {
	X, Y, Theta float64
}

type endPayload struct {
	X, Y float64
}

type obstaclePayload struct {
	MinX, MinY, MaxX, MaxY float64
}

type boolPayload struct {
	Value bool
}

// decode unmarshals env.Data into v, wrapping any error with the message
// type for easier diagnosis.
func (env inboundEnvelope) decode(v interface{}) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("wsserver: decoding %q payload: %w", env.Type, err)
	}
	return nil
}

// snapshot builds the full-state payload sent once per connection on
// connect, matching server.py's initial `state.json()` push. Only fields
// with a meaningful JSON representation are included; internal-only
// bookkeeping (signals, mutex) is never exposed.
func snapshot(st *state.State) map[string]interface{} {
	out := map[string]interface{}{}

	if pose, ok := st.Pose(); ok {
		out["position"] = state.Vec2{X: pose.X, Y: pose.Y}
		out["orientation"] = pose.Theta
	}
	if end, ok := st.End(); ok {
		out["end"] = end
	}
	out["arrived"] = st.Arrived()

	path, nextIdx := st.Path()
	out["path"] = path
	out["next_waypoint_index"] = nextIdx

	out["obstacles"] = st.Obstacles()
	out["extra_obstacles"] = st.ExtraObstacles()
	out["optimise"] = st.Optimise()
	out["debug_view"] = st.DebugView()
	out["reactive_control"] = st.ReactiveControl()
	out["dist"] = st.Dist()

	if back, ok := st.LastDetection(); ok {
		out["last_detection"] = back
	}
	if front, ok := st.LastDetectionFront(); ok {
		out["last_detection_front"] = front
	}

	return out
}
