package wsserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"github.com/thymio-project/brain/internal/driverbus"
	"github.com/thymio-project/brain/internal/logging"
	"github.com/thymio-project/brain/internal/state"
)

type fakeNode struct {
	calls []map[string][]int
}

func (n *fakeNode) SetVariables(vars map[string][]int) error {
	n.calls = append(n.calls, vars)
	return nil
}
func (n *fakeNode) AddVariablesChangedListener(fn func(map[string]interface{}))    {}
func (n *fakeNode) RemoveVariablesChangedListener(fn func(map[string]interface{})) {}

func startTestServer(t *testing.T, st *state.State, nodes []driverbus.Node, shutdown context.CancelFunc) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	srv := New("", st, nodes, logging.NewTestLogger(), shutdown)
	ts := httptest.NewServer(srv.Handler())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	test.That(t, err, test.ShouldBeNil)

	t.Cleanup(func() {
		conn.Close()
		ts.Close()
	})
	return ts, conn
}

func TestConnectReceivesHelloThenState(t *testing.T) {
	st := state.New(8, 110)
	st.SetPose(state.Pose{X: 1, Y: 2, Theta: 0})
	_, conn := startTestServer(t, st, nil, nil)

	var hello outboundEnvelope
	test.That(t, conn.ReadJSON(&hello), test.ShouldBeNil)
	test.That(t, hello.Type, test.ShouldEqual, typeMsg)

	var snap outboundEnvelope
	test.That(t, conn.ReadJSON(&snap), test.ShouldBeNil)
	test.That(t, snap.Type, test.ShouldEqual, typeState)
}

func TestSetEndTriggersPatch(t *testing.T) {
	st := state.New(8, 110)
	_, conn := startTestServer(t, st, nil, nil)

	// Drain hello + state.
	var env outboundEnvelope
	conn.ReadJSON(&env)
	conn.ReadJSON(&env)

	test.That(t, conn.WriteJSON(map[string]interface{}{
		"type": "set_end",
		"data": map[string]float64{"X": 50, "Y": 60},
	}), test.ShouldBeNil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var patch outboundEnvelope
	test.That(t, conn.ReadJSON(&patch), test.ShouldBeNil)
	test.That(t, patch.Type, test.ShouldEqual, typePatch)

	end, ok := st.End()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, end.X, test.ShouldEqual, 50.0)
	test.That(t, end.Y, test.ShouldEqual, 60.0)
}

func TestPingReceivesPong(t *testing.T) {
	st := state.New(8, 110)
	_, conn := startTestServer(t, st, nil, nil)

	var env outboundEnvelope
	conn.ReadJSON(&env)
	conn.ReadJSON(&env)

	test.That(t, conn.WriteJSON(map[string]interface{}{"type": "ping", "data": 7}), test.ShouldBeNil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong outboundEnvelope
	test.That(t, conn.ReadJSON(&pong), test.ShouldBeNil)
	test.That(t, pong.Type, test.ShouldEqual, typePong)
}

func TestStopCallsShutdown(t *testing.T) {
	st := state.New(8, 110)
	node := &fakeNode{}
	called := make(chan struct{})
	_, conn := startTestServer(t, st, []driverbus.Node{node}, func() { close(called) })

	var env outboundEnvelope
	conn.ReadJSON(&env)
	conn.ReadJSON(&env)

	test.That(t, conn.WriteJSON(map[string]interface{}{"type": "stop"}), test.ShouldBeNil)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("stop command did not call shutdown")
	}
	test.That(t, len(node.calls), test.ShouldBeGreaterThan, 0)
	test.That(t, node.calls[0]["motor.left.target"][0], test.ShouldEqual, 0)
}
