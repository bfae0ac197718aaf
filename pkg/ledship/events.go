package ledship

import "time"

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FrameDispatchedEvent is emitted after a frame reached every device.
type FrameDispatchedEvent struct {
	Seq uint64

	// TextSkipped is set when text devices were skipped because the frame
	// did not change.
	TextSkipped bool

	Devices  int
	Failed   int
	Packets  int
	Duration time.Duration
}

// DispatchErrorEvent is emitted when a device could not be served.
type DispatchErrorEvent struct {
	Device string
	Error  error
}

// EventHandler receives bridge events. Calls are made synchronously from
// the dispatch goroutine and must return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnFrameDispatched(event FrameDispatchedEvent)
	OnDispatchError(event DispatchErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)         {}
func (BaseEventHandler) OnFrameDispatched(FrameDispatchedEvent) {}
func (BaseEventHandler) OnDispatchError(DispatchErrorEvent)     {}
