package signalbus

import (
	"context"

	channerics "github.com/niceyeti/channerics/channels"
)

// Stream returns a channel that receives a value every time the signal
// triggers, for callers that want to select on a signal alongside other
// channels (the planner's scene_update loop and the operator server's write
// pump use it this way) rather than calling Wait directly. A trigger that
// fires while the stream's goroutine is not waiting is not delivered. The
// channel is closed when ctx is done.
func (s *Signal) Stream(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			s.Wait(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Merge fans multiple signal streams into one, using channerics' Merge
// combinator (github.com/niceyeti/channerics/channels), the same
// fan-in/fan-out helper library used for the operator event pipeline in
// the retrieved niceyeti-tabular example.
func Merge(ctx context.Context, signals ...*Signal) <-chan struct{} {
	streams := make([]<-chan struct{}, len(signals))
	for i, sig := range signals {
		streams[i] = sig.Stream(ctx)
	}
	return channerics.Merge(ctx.Done(), streams...)
}
