// Package lifecycle provides the scoped-resource pattern every long-lived
// module (EKF event processing, local avoidance, the planner, the
// operator server) is acquired and released through, mirroring
// original_source/app/utils/module.py's Module.__enter__/__exit__ context
// manager with Go's context cancellation and goroutines.
package lifecycle

import (
	"context"

	"go.viam.com/utils"

	"github.com/thymio-project/brain/internal/driverbus"
	"github.com/thymio-project/brain/internal/logging"
)

// Module is one acquired background task: a driver event subscription
// (optional) plus a cancellable background goroutine (optional). Release
// undoes exactly what Acquire set up, matching module.py's
// __enter__/__exit__ pairing.
type Module struct {
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
}

// Acquire starts a module's background run loop (if run is non-nil) inside
// a panic-capturing goroutine (go.viam.com/utils.PanicCapturingGo, the same
// wrapper the teacher uses around background work whose panics must not
// take down the process — module.py's own `_run` try/except serves the
// identical purpose for its asyncio task), and subscribes processor to
// node's driver events (if both are non-nil). Release stops both.
func Acquire(parent context.Context, node driverbus.Node, processor driverbus.EventProcessor, logger logging.Logger, run func(ctx context.Context)) *Module {
	ctx, cancel := context.WithCancel(parent)
	m := &Module{cancel: cancel, done: make(chan struct{})}

	if node != nil && processor != nil {
		m.unsubscribe = driverbus.Subscribe(node, processor, logger)
	}

	if run == nil {
		close(m.done)
		return m
	}

	utils.PanicCapturingGo(func() {
		defer close(m.done)
		run(ctx)
	})

	return m
}

// Release cancels the module's run loop, waits for it to return, and
// unsubscribes from driver events, matching module.py's __exit__.
func (m *Module) Release() {
	m.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	<-m.done
}
