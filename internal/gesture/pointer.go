package gesture

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/mj1618/findclose/internal/loop"
)

// PointerOptions configure a PointerDetector.
type PointerOptions struct {
	Window              time.Duration // Sliding sample window, default 450ms
	Timeout             time.Duration // Calm period that ends a shake, default 1.2s
	MinDirectionChanges int           // Default 3
	MinTotalDistance    float64       // Default 420
	MinSegmentDelta     float64       // Segments below this are jitter, default 14
	MinSpeed            float64       // Units per second, default 1200
	Logger              *slog.Logger
}

// PointerTimeouts are the viewport-scaled stop timeouts.
type PointerTimeouts struct {
	Small          time.Duration
	Medium         time.Duration
	Large          time.Duration
	MediumDiagonal float64
	LargeDiagonal  float64
}

// DefaultPointerTimeouts returns the shipped timeout ladder.
func DefaultPointerTimeouts() PointerTimeouts {
	return PointerTimeouts{
		Small:          2000 * time.Millisecond,
		Medium:         2500 * time.Millisecond,
		Large:          3000 * time.Millisecond,
		MediumDiagonal: 2200,
		LargeDiagonal:  2800,
	}
}

// ForViewport picks the stop timeout for a viewport: a shake spans more
// pixels on a large screen, so larger diagonals get longer timeouts.
func (t PointerTimeouts) ForViewport(width, height float64) time.Duration {
	diag := math.Hypot(math.Max(width, 1), math.Max(height, 1))
	switch {
	case diag >= t.LargeDiagonal:
		return t.Large
	case diag >= t.MediumDiagonal:
		return t.Medium
	default:
		return t.Small
	}
}

// PointerDetector recognises a rapid back-and-forth mouse motion within a
// sliding time window.
type PointerDetector struct {
	opts     PointerOptions
	sched    loop.Scheduler
	src      PointerSource
	handlers Handlers

	started     bool
	unsubscribe func()

	points    []timedPoint
	shaking   bool
	stopTimer loop.Timer
}

// NewPointer returns a detector reading samples from src.
func NewPointer(sched loop.Scheduler, src PointerSource, opts PointerOptions) *PointerDetector {
	if opts.Window <= 0 {
		opts.Window = 450 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 1200 * time.Millisecond
	}
	if opts.MinDirectionChanges <= 0 {
		opts.MinDirectionChanges = 3
	}
	if opts.MinTotalDistance <= 0 {
		opts.MinTotalDistance = 420
	}
	if opts.MinSegmentDelta <= 0 {
		opts.MinSegmentDelta = 14
	}
	if opts.MinSpeed <= 0 {
		opts.MinSpeed = 1200
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PointerDetector{opts: opts, sched: sched, src: src}
}

// Kind implements Detector.
func (d *PointerDetector) Kind() Kind { return KindPointer }

// SetHandlers implements Detector.
func (d *PointerDetector) SetHandlers(h Handlers) { d.handlers = h }

// Started implements Detector.
func (d *PointerDetector) Started() bool { return d.started }

// Shaking implements Detector.
func (d *PointerDetector) Shaking() bool { return d.shaking }

// Timeout returns the current stop timeout.
func (d *PointerDetector) Timeout() time.Duration { return d.opts.Timeout }

// Start implements Detector. It fails only when there is no pointer source.
func (d *PointerDetector) Start(context.Context) bool {
	if d.src == nil {
		return false
	}
	if d.started {
		return true
	}
	d.started = true
	d.unsubscribe = d.src.SubscribePointer(d.HandlePointer)
	d.opts.Logger.Debug("pointer detector started", "timeout", d.opts.Timeout)
	return true
}

// Stop implements Detector.
func (d *PointerDetector) Stop() {
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.clearStop()
	d.shaking = false
	d.points = nil
	d.started = false
}

// UpdateTimeout changes the stop timeout for timers armed from now on.
func (d *PointerDetector) UpdateTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.opts.Timeout = timeout
	}
}

// Hold suspends the stop timer. The session stays shaking until the next
// qualifying sample re-arms the timer or Release ends it.
func (d *PointerDetector) Hold() {
	d.clearStop()
}

// Release ends a held session immediately.
func (d *PointerDetector) Release() {
	d.clearStop()
	if !d.shaking {
		return
	}
	d.shaking = false
	d.opts.Logger.Debug("pointer shake released")
	d.handlers.end()
}

// HandlePointer processes one sample.
func (d *PointerDetector) HandlePointer(s PointerSample) {
	if s.PointerType != "" && s.PointerType != "mouse" {
		return
	}
	now := d.sched.Now()
	d.points = append(d.points, timedPoint{x: s.X, y: s.Y, t: now})
	drop := 0
	for drop < len(d.points) && now.Sub(d.points[drop].t) > d.opts.Window {
		drop++
	}
	d.points = d.points[drop:]

	if !d.hasShakePattern() {
		return
	}
	if !d.shaking {
		d.shaking = true
		d.opts.Logger.Debug("pointer shake started", "points", len(d.points))
		d.handlers.start()
	}
	d.clearStop()
	d.stopTimer = d.sched.AfterFunc(d.opts.Timeout, func() {
		d.stopTimer = nil
		d.shaking = false
		d.opts.Logger.Debug("pointer shake ended")
		d.handlers.end()
	})
}

// hasShakePattern evaluates the buffered window: enough reversals of the
// dominant axis, enough path length and enough average speed.
func (d *PointerDetector) hasShakePattern() bool {
	pts := d.points
	if len(pts) < 3 {
		return false
	}
	duration := millis(pts[len(pts)-1].t.Sub(pts[0].t))
	if duration <= 0 {
		return false
	}

	changes, prevDir := 0, 0
	total := 0.0
	for i := 1; i < len(pts); i++ {
		dx := pts[i].x - pts[i-1].x
		dy := pts[i].y - pts[i-1].y
		total += math.Hypot(dx, dy)

		dominant := dy
		if math.Abs(dx) >= math.Abs(dy) {
			dominant = dx
		}
		if math.Abs(dominant) < d.opts.MinSegmentDelta {
			continue
		}
		dir := 1
		if dominant < 0 {
			dir = -1
		}
		if prevDir != 0 && dir != prevDir {
			changes++
		}
		prevDir = dir
	}

	speed := total / duration * 1000
	return changes >= d.opts.MinDirectionChanges &&
		total >= d.opts.MinTotalDistance &&
		speed >= d.opts.MinSpeed
}

func (d *PointerDetector) clearStop() {
	if d.stopTimer != nil {
		d.stopTimer.Stop()
		d.stopTimer = nil
	}
}
