package gesture

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/mj1618/findclose/internal/loop"
)

// AccelerationOptions configure an AccelerationDetector.
type AccelerationOptions struct {
	Threshold  float64       // Shake speed threshold, default 100
	Timeout    time.Duration // Calm period that ends a shake, default 1s
	SampleGate time.Duration // Minimum spacing of accepted samples, default 100ms
	// Permission is consulted on Start when the platform requires a grant.
	Permission PermissionRequester
	// PermissionTimeout bounds a pending permission request, default 30s.
	PermissionTimeout time.Duration
	// Spawn runs the permission request off the loop, default a goroutine.
	Spawn  func(func())
	Logger *slog.Logger
}

// AccelerationDetector recognises a shake from device motion: the change of
// the summed acceleration axes between accepted samples, scaled to a speed.
type AccelerationDetector struct {
	opts     AccelerationOptions
	sched    loop.Scheduler
	src      MotionSource
	handlers Handlers

	started     bool
	pending     bool
	gen         int
	unsubscribe func()

	lastTime  time.Time
	last      *Vec3
	shaking   bool
	stopTimer loop.Timer
}

// NewAcceleration returns a detector reading samples from src.
func NewAcceleration(sched loop.Scheduler, src MotionSource, opts AccelerationOptions) *AccelerationDetector {
	if opts.Threshold <= 0 {
		opts.Threshold = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.SampleGate <= 0 {
		opts.SampleGate = 100 * time.Millisecond
	}
	if opts.PermissionTimeout <= 0 {
		opts.PermissionTimeout = 30 * time.Second
	}
	if opts.Spawn == nil {
		opts.Spawn = func(f func()) { go f() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AccelerationDetector{opts: opts, sched: sched, src: src}
}

// Kind implements Detector.
func (d *AccelerationDetector) Kind() Kind { return KindMotion }

// SetHandlers implements Detector.
func (d *AccelerationDetector) SetHandlers(h Handlers) { d.handlers = h }

// Started implements Detector.
func (d *AccelerationDetector) Started() bool { return d.started }

// Shaking implements Detector.
func (d *AccelerationDetector) Shaking() bool { return d.shaking }

// Pending reports whether a permission request is outstanding.
func (d *AccelerationDetector) Pending() bool { return d.pending }

// Start implements Detector. When a permission requester is configured the
// request runs off the loop and Start returns true at once; the grant starts
// listening from a posted callback and a refusal fires OnStartFailed. The
// request outlives ctx cancellation and is bounded by PermissionTimeout.
func (d *AccelerationDetector) Start(ctx context.Context) bool {
	if d.started || d.pending {
		return true
	}
	if d.src == nil {
		return false
	}
	if d.opts.Permission == nil {
		d.listen()
		return true
	}
	d.pending = true
	gen := d.gen
	req := d.opts.Permission
	timeout := d.opts.PermissionTimeout
	base := context.WithoutCancel(ctx)
	d.opts.Spawn(func() {
		rctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		err := req.RequestPermission(rctx)
		d.sched.Post(func() { d.granted(gen, err) })
	})
	return true
}

func (d *AccelerationDetector) granted(gen int, err error) {
	if gen != d.gen || !d.pending {
		return
	}
	d.pending = false
	if err != nil {
		d.opts.Logger.Warn("motion permission not granted", "error", err)
		d.handlers.startFailed(err)
		return
	}
	d.listen()
}

func (d *AccelerationDetector) listen() {
	d.started = true
	d.unsubscribe = d.src.SubscribeMotion(d.HandleMotion)
	d.opts.Logger.Debug("motion detector started")
}

// Stop implements Detector.
func (d *AccelerationDetector) Stop() {
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	if d.stopTimer != nil {
		d.stopTimer.Stop()
		d.stopTimer = nil
	}
	d.started = false
	d.pending = false
	d.gen++
	d.shaking = false
	d.last = nil
	d.lastTime = time.Time{}
}

// HandleMotion processes one sample.
func (d *AccelerationDetector) HandleMotion(s MotionSample) {
	cur := s.Acceleration
	if cur == nil {
		return
	}
	now := d.sched.Now()
	diff := now.Sub(d.lastTime)
	if !d.lastTime.IsZero() && diff < d.opts.SampleGate {
		return
	}
	d.lastTime = now

	if d.last == nil {
		d.last = &Vec3{X: cur.X, Y: cur.Y, Z: cur.Z}
		return
	}

	delta := math.Abs(cur.X + cur.Y + cur.Z - d.last.X - d.last.Y - d.last.Z)
	speed := delta / millis(diff) * 1000
	if speed > d.opts.Threshold {
		if !d.shaking {
			d.shaking = true
			d.opts.Logger.Debug("motion shake started", "speed", speed)
			d.handlers.start()
		}
		d.armStop()
	}
	*d.last = *cur
}

func (d *AccelerationDetector) armStop() {
	if d.stopTimer != nil {
		d.stopTimer.Stop()
	}
	d.stopTimer = d.sched.AfterFunc(d.opts.Timeout, func() {
		d.stopTimer = nil
		d.shaking = false
		d.opts.Logger.Debug("motion shake ended")
		d.handlers.end()
	})
}
