package driverbus

import (
	"testing"

	"go.viam.com/test"

	"github.com/thymio-project/brain/internal/logging"
)

func TestLoggingNodeSetVariablesAlwaysSucceeds(t *testing.T) {
	n := NewLoggingNode("base", logging.NewTestLogger())
	err := n.SetVariables(map[string][]int{"motor.left.target": {10}})
	test.That(t, err, test.ShouldBeNil)
}

func TestLoggingNodeNeverInvokesListeners(t *testing.T) {
	n := NewLoggingNode("base", logging.NewTestLogger())
	called := false
	n.AddVariablesChangedListener(func(map[string]interface{}) { called = true })
	n.SetVariables(map[string][]int{"motor.left.target": {10}})
	test.That(t, called, test.ShouldBeFalse)
}
