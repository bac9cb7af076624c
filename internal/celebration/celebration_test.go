package celebration

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
)

type recordingNode struct {
	calls []map[string][]int
}

func (n *recordingNode) SetVariables(vars map[string][]int) error {
	n.calls = append(n.calls, vars)
	return nil
}
func (n *recordingNode) AddVariablesChangedListener(fn func(map[string]interface{}))    {}
func (n *recordingNode) RemoveVariablesChangedListener(fn func(map[string]interface{})) {}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestDoHalfTurnSpinsThenStops(t *testing.T) {
	node := &recordingNode{}
	c := New(node, nil)
	c.sleep = noSleep

	test.That(t, c.DoHalfTurn(context.Background()), test.ShouldBeNil)
	test.That(t, len(node.calls), test.ShouldEqual, 2)
	test.That(t, node.calls[0]["motor.left.target"][0], test.ShouldEqual, c.speeds.HalfTurnSpeed)
	test.That(t, node.calls[0]["motor.right.target"][0], test.ShouldEqual, -c.speeds.HalfTurnSpeed)
	test.That(t, node.calls[1]["motor.left.target"][0], test.ShouldEqual, 0)
}

func TestDropBaubleNoOpWithoutTopNode(t *testing.T) {
	node := &recordingNode{}
	c := New(node, nil)
	c.sleep = noSleep

	test.That(t, c.DropBauble(context.Background()), test.ShouldBeNil)
	test.That(t, len(node.calls), test.ShouldEqual, 0)
}

func TestDropBaubleRunsFullSequenceOnTopNode(t *testing.T) {
	base := &recordingNode{}
	top := &recordingNode{}
	c := New(base, top)
	c.sleep = noSleep

	test.That(t, c.DropBauble(context.Background()), test.ShouldBeNil)
	test.That(t, len(top.calls), test.ShouldEqual, 4)
	test.That(t, top.calls[0]["motor.left.target"][0], test.ShouldEqual, c.speeds.DropSpeed)
	test.That(t, top.calls[1]["motor.left.target"][0], test.ShouldEqual, 0)
	test.That(t, top.calls[2]["motor.left.target"][0], test.ShouldEqual, -c.speeds.DropSpeed)
	test.That(t, len(base.calls), test.ShouldEqual, 0)
}

func TestStopThymioZeroesRotation(t *testing.T) {
	node := &recordingNode{}
	c := New(node, nil)

	test.That(t, c.StopThymio(), test.ShouldBeNil)
	test.That(t, node.calls[0]["motor.left.target"][0], test.ShouldEqual, 0)
	test.That(t, node.calls[0]["motor.right.target"][0], test.ShouldEqual, 0)
}

func TestDoHalfTurnStopsOnContextCancellation(t *testing.T) {
	node := &recordingNode{}
	c := New(node, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.DoHalfTurn(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	// Only the initial spin-up call happened before the cancelled sleep
	// returned an error.
	test.That(t, len(node.calls), test.ShouldEqual, 1)
}
