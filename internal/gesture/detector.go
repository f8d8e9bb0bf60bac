// Package gesture recognises deliberate shake gestures from device motion or
// pointer movement. Both detectors are single-threaded state machines: feed
// them samples and timers from one loop.
package gesture

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is returned by a PermissionRequester when the user
// declines motion access.
var ErrPermissionDenied = errors.New("gesture: motion permission denied")

// Kind names a detector implementation.
type Kind string

const (
	KindMotion  Kind = "motion"
	KindPointer Kind = "pointer"
)

// Handlers are the detector callbacks. Any may be nil.
type Handlers struct {
	OnShakeStart func()
	OnShakeEnd   func()
	// OnStartFailed reports a Start that was accepted but could not finish,
	// such as a declined motion permission.
	OnStartFailed func(err error)
}

func (h Handlers) start() {
	if h.OnShakeStart != nil {
		h.OnShakeStart()
	}
}

func (h Handlers) end() {
	if h.OnShakeEnd != nil {
		h.OnShakeEnd()
	}
}

func (h Handlers) startFailed(err error) {
	if h.OnStartFailed != nil {
		h.OnStartFailed(err)
	}
}

// Detector is the contract shared by the motion and pointer detectors.
type Detector interface {
	Kind() Kind
	// Start begins listening and reports whether the detector is running or
	// waiting on a permission grant. A missing input source is a false
	// result; a later refusal goes to Handlers.OnStartFailed.
	Start(ctx context.Context) bool
	// Stop stops listening and resets the session without firing shake-end.
	Stop()
	Started() bool
	Shaking() bool
	SetHandlers(h Handlers)
}

// Holder is implemented by detectors whose stop timer can be suspended while
// the user interacts with a revealed target.
type Holder interface {
	Hold()
	Release()
}

// Vec3 is a three-axis acceleration in m/s².
type Vec3 struct {
	X, Y, Z float64
}

// MotionSample is one device motion event. Acceleration is nil when the
// device did not report acceleration including gravity.
type MotionSample struct {
	Acceleration *Vec3 `json:"acceleration,omitempty"`
}

// PointerSample is one pointer move in client coordinates. PointerType is
// "mouse", "pen", "touch" or empty when unknown.
type PointerSample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PointerType string  `json:"pointerType,omitempty"`
}

// MotionSource delivers motion samples on the detector's loop.
type MotionSource interface {
	SubscribeMotion(fn func(MotionSample)) (unsubscribe func())
}

// PointerSource delivers pointer samples on the detector's loop.
type PointerSource interface {
	SubscribePointer(fn func(PointerSample)) (unsubscribe func())
}

// PermissionRequester asks the user for motion access. It blocks until the
// user answers or ctx ends; a nil error means granted.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}

// PermissionFunc adapts a function to PermissionRequester.
type PermissionFunc func(ctx context.Context) error

// RequestPermission implements PermissionRequester.
func (f PermissionFunc) RequestPermission(ctx context.Context) error { return f(ctx) }

// timedPoint is a pointer sample stamped with the loop clock.
type timedPoint struct {
	x, y float64
	t    time.Time
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
