// Package transport owns the MSRP socket.
//
// Ownership boundary:
// - client dial / server accept-one (optionally TLS, "msrps")
// - one FrameReceiver goroutine dispatching parsed frames to a Handler
// - one FrameSender goroutine draining the outbound queue
//
// Frames are dispatched in arrival order on the receiver goroutine. Queued and
// immediate writes share one write mutex and never interleave mid-frame.
package transport
