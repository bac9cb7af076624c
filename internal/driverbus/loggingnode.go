package driverbus

import "github.com/thymio-project/brain/internal/logging"

// LoggingNode is a Node that logs every write instead of touching real
// hardware, used for dry-run/simulation startup and for exercising the
// coordinator without a Thymio attached. It never produces driver events:
// AddVariablesChangedListener registers a callback that is simply never
// invoked, the simulation-mode analogue of a driver that is connected but
// idle.
type LoggingNode struct {
	name      string
	logger    logging.Logger
	listeners []func(map[string]interface{})
}

// NewLoggingNode constructs a LoggingNode identified by name in log output
// (e.g. "base", "top"), matching context.py's distinction between
// ctx.node and ctx.node_top.
func NewLoggingNode(name string, logger logging.Logger) *LoggingNode {
	return &LoggingNode{name: name, logger: logger}
}

// SetVariables logs the write and always succeeds.
func (n *LoggingNode) SetVariables(vars map[string][]int) error {
	n.logger.Debugw("driverbus: simulated write", "node", n.name, "variables", vars)
	return nil
}

// AddVariablesChangedListener records fn; LoggingNode never calls it since
// there is no real driver producing events.
func (n *LoggingNode) AddVariablesChangedListener(fn func(map[string]interface{})) {
	n.listeners = append(n.listeners, fn)
}

// RemoveVariablesChangedListener is a no-op: fn stays in the recorded
// listener list. It exists to satisfy the Node contract.
func (n *LoggingNode) RemoveVariablesChangedListener(fn func(map[string]interface{})) {}
