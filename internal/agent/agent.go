// Package agent is the per-frame execution context. An Agent owns one
// document's highlight controller and gesture detector, follows the enable
// preference, and answers scan and clear requests from the coordinator.
// Every method except Send must be called from the frame's loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mj1618/findclose/internal/config"
	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/gesture"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/protocol"
	"github.com/mj1618/findclose/internal/settings"
)

// DefaultPermissionTimeout bounds a motion permission prompt.
const DefaultPermissionTimeout = 30 * time.Second

// Scan sources reported in scan results.
const (
	SourceShake     = "shake-top"
	SourceBroadcast = "broadcast"
)

// Platform describes the device class the agent runs on.
type Platform struct {
	Desktop bool // Pointer shakes on desktop, device motion elsewhere
}

// Notifier forwards a message to the coordinator without waiting for it.
type Notifier interface {
	Notify(msg protocol.Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg protocol.Message)

// Notify implements Notifier.
func (f NotifierFunc) Notify(msg protocol.Message) { f(msg) }

// Runner executes a function on the agent's loop and waits for it. *loop.Loop
// implements it; without one Send runs inline.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Options configure an Agent.
type Options struct {
	Document      *model.Document
	FrameID       int
	ParentFrameID int // -1 for the top frame
	IsTop         bool
	Platform      Platform

	Scheduler loop.Scheduler
	Runner    Runner
	Store     settings.Store
	Config    *config.Config // Defaults when nil

	Motion     gesture.MotionSource
	Pointer    gesture.PointerSource
	Permission gesture.PermissionRequester
	// PermissionTimeout bounds each motion permission request; default
	// DefaultPermissionTimeout.
	PermissionTimeout time.Duration
	// Spawn runs permission requests off the loop; default a goroutine.
	Spawn func(func())

	// Finder overrides the detection pipeline.
	Finder highlight.Finder
	// Notifier receives update-icon and, with SyncFrames, shake-start and
	// shake-end so the coordinator can fan the scan out to every frame.
	Notifier   Notifier
	SyncFrames bool

	Logger *slog.Logger
}

// Agent is one frame's context.
type Agent struct {
	opts   Options
	doc    *model.Document
	sched  loop.Scheduler
	logger *slog.Logger
	cfg    config.Config

	ctrl     *highlight.Controller
	detector gesture.Detector
	pointer  *gesture.PointerDetector
	hover    *HoverHold

	current     settings.Settings
	unwatch     func()
	retryRemove func()
	retried     bool
	initialized bool
	closed      bool
}

// New builds an agent. The detector is chosen by platform: the pointer
// detector on desktop, the motion detector otherwise.
func New(opts Options) *Agent {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PermissionTimeout <= 0 {
		opts.PermissionTimeout = DefaultPermissionTimeout
	}
	if opts.Store == nil {
		opts.Store = settings.NewMemoryStore(settings.Defaults())
	}
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	logger := opts.Logger.With("frame", opts.FrameID, "top", opts.IsTop)

	a := &Agent{
		opts:    opts,
		doc:     opts.Document,
		sched:   opts.Scheduler,
		logger:  logger,
		cfg:     cfg,
		current: settings.Defaults(),
	}

	finder := opts.Finder
	if finder == nil {
		x := detect.NewExtractor(a.doc.Hostname())
		x.Thresholds = cfg.Detect
		finder = detect.NewFinder(x, logger)
	}
	a.ctrl = highlight.New(a.doc, highlight.Options{
		Finder:       finder,
		Scheduler:    a.sched,
		FrameDelay:   cfg.Highlight.FrameDelay,
		CleanupDelay: cfg.Highlight.CleanupDelay,
		Logger:       logger,
	})

	if opts.Platform.Desktop {
		po := cfg.Pointer
		po.Logger = logger
		po.Timeout = cfg.Timeouts.ForViewport(a.doc.Viewport.Width, a.doc.Viewport.Height)
		a.pointer = gesture.NewPointer(a.sched, opts.Pointer, po)
		a.detector = a.pointer
		a.hover = NewHoverHold(a.ctrl, a.pointer, a.sched)
	} else {
		ao := cfg.Shake
		ao.Logger = logger
		ao.Permission = opts.Permission
		ao.PermissionTimeout = opts.PermissionTimeout
		ao.Spawn = opts.Spawn
		a.detector = gesture.NewAcceleration(a.sched, opts.Motion, ao)
	}
	a.detector.SetHandlers(gesture.Handlers{
		OnShakeStart:  a.HandleShakeStart,
		OnShakeEnd:    a.HandleShakeEnd,
		OnStartFailed: a.handleStartFailed,
	})
	return a
}

// Controller returns the agent's highlight controller.
func (a *Agent) Controller() *highlight.Controller { return a.ctrl }

// Detector returns the agent's gesture detector.
func (a *Agent) Detector() gesture.Detector { return a.detector }

// Settings returns the last loaded preferences.
func (a *Agent) Settings() settings.Settings { return a.current }

// RetryArmed reports whether a click retry is waiting.
func (a *Agent) RetryArmed() bool { return a.retryRemove != nil }

// HandlesShake reports whether this frame reacts to gestures: the top frame
// always does, sub-frames only with the pointer detector, since device
// motion reaches every frame at once.
func (a *Agent) HandlesShake() bool {
	return a.opts.IsTop || a.detector.Kind() == gesture.KindPointer
}

// Init loads the preferences, subscribes to their changes and starts the
// detector when enabled. If the detector cannot start, a click anywhere
// outside an interactive control retries once. Init runs at most once.
func (a *Agent) Init(ctx context.Context) {
	defer a.guard("init")
	if a.initialized || a.closed {
		return
	}
	a.initialized = true

	a.notify(protocol.TypeUpdateIcon)
	a.refresh(ctx, "initialize")
	a.unwatch = a.opts.Store.Watch(func(c settings.Change) {
		a.sched.Post(func() { a.HandleSettingsChange(c) })
	})

	if !a.current.IsFindCloseEnabled || !a.HandlesShake() {
		return
	}
	if !a.start(ctx) {
		a.armRetry()
	}
}

// HandleSettingsChange follows the enable flag: enabled starts the detector,
// disabled stops it and clears any revealed targets.
func (a *Agent) HandleSettingsChange(c settings.Change) {
	defer a.guard("settings change")
	if a.closed {
		return
	}
	a.current = c.New
	if !c.EnabledChanged() || !a.HandlesShake() {
		return
	}
	if a.current.IsFindCloseEnabled {
		a.start(context.Background())
		return
	}
	a.disarmRetry()
	a.detector.Stop()
	a.clear()
}

// VisibilityChanged reloads the preferences when the page becomes visible,
// since they may have changed while it was hidden.
func (a *Agent) VisibilityChanged(ctx context.Context, visible bool) {
	defer a.guard("visibility change")
	if !visible || a.closed {
		return
	}
	a.refresh(ctx, "visibilitychange")
	a.notify(protocol.TypeUpdateIcon)
	if a.current.IsFindCloseEnabled && a.HandlesShake() {
		a.start(ctx)
	}
}

// PageShow restarts the detector when the page is restored from the
// back-forward cache.
func (a *Agent) PageShow(ctx context.Context, persisted bool) {
	defer a.guard("pageshow")
	if !persisted || a.closed {
		return
	}
	if a.current.IsFindCloseEnabled && a.HandlesShake() {
		a.start(ctx)
	}
}

// Resize records the new viewport and rescales the pointer stop timeout.
func (a *Agent) Resize(width, height float64) {
	a.doc.Viewport = model.Size{Width: width, Height: height}
	if a.pointer != nil {
		a.pointer.UpdateTimeout(a.cfg.Timeouts.ForViewport(width, height))
	}
}

// HandleShakeStart reveals the targets of this frame.
func (a *Agent) HandleShakeStart() {
	defer a.guard("shake start")
	if !a.HandlesShake() || a.closed {
		return
	}
	a.ctrl.RunScan(SourceShake)
	if a.opts.SyncFrames {
		a.notify(protocol.TypeShakeStart)
	}
}

// HandleShakeEnd hides the targets of this frame.
func (a *Agent) HandleShakeEnd() {
	defer a.guard("shake end")
	if !a.HandlesShake() || a.closed {
		return
	}
	a.clear()
	if a.opts.SyncFrames {
		a.notify(protocol.TypeShakeEnd)
	}
}

// HandleMessage answers a coordinator request. A panic inside the handler is
// reported as an error so the page keeps running.
func (a *Agent) HandleMessage(msg protocol.Message) (reply protocol.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("message handler panicked", "type", msg.Type, "panic", r)
			reply, err = protocol.Reply{}, fmt.Errorf("agent: %s: panic: %v", msg.Type, r)
		}
	}()
	switch msg.Type {
	case protocol.TypeRunShakeScan:
		return protocol.ScanReply(a.doc.URL, a.opts.IsTop, a.ctrl.RunScan(SourceBroadcast)), nil
	case protocol.TypeClearShakeScan:
		return protocol.ClearReply(a.doc.URL, a.opts.IsTop, a.clear()), nil
	default:
		return protocol.Reply{}, protocol.Unknown(msg)
	}
}

// Info implements protocol.Frame.
func (a *Agent) Info() protocol.FrameInfo {
	parent := a.opts.ParentFrameID
	if a.opts.IsTop {
		parent = -1
	}
	return protocol.FrameInfo{ID: a.opts.FrameID, ParentID: parent, URL: a.doc.URL}
}

// Send implements protocol.Frame. It may be called from any goroutine when a
// Runner is configured.
func (a *Agent) Send(ctx context.Context, msg protocol.Message) (protocol.Reply, error) {
	if a.opts.Runner == nil {
		return a.HandleMessage(msg)
	}
	var (
		reply protocol.Reply
		err   error
	)
	if derr := a.opts.Runner.Do(ctx, func() { reply, err = a.HandleMessage(msg) }); derr != nil {
		return protocol.Reply{}, fmt.Errorf("agent: frame %d: %w", a.opts.FrameID, derr)
	}
	return reply, err
}

// Close stops the detector, drops every listener and pending timer, and
// leaves revealed targets as they are.
func (a *Agent) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
	a.disarmRetry()
	a.detector.Stop()
	if a.hover != nil {
		a.hover.Close()
	}
	a.ctrl.Close()
}

func (a *Agent) start(ctx context.Context) bool {
	started := a.detector.Start(ctx)
	if started {
		a.disarmRetry()
	}
	a.logger.Debug("detector start", "kind", a.detector.Kind(), "started", started)
	return started
}

func (a *Agent) clear() highlight.ClearResult {
	if a.hover != nil {
		a.hover.CancelPending()
	}
	return a.ctrl.ClearScan()
}

// refresh loads the preferences. On failure the previous values are kept,
// which are the defaults until a load succeeds.
func (a *Agent) refresh(ctx context.Context, reason string) bool {
	s, err := a.opts.Store.Load(ctx)
	if err != nil {
		a.logger.Warn("failed to load settings", "reason", reason, "error", err)
		return false
	}
	a.current = s
	return true
}

// handleStartFailed runs on the loop when a permission request is refused.
func (a *Agent) handleStartFailed(err error) {
	a.logger.Debug("detector start failed", "kind", a.detector.Kind(), "error", err)
	if a.closed || !a.current.IsFindCloseEnabled {
		return
	}
	a.armRetry()
}

// armRetry waits for a click outside interactive controls and retries the
// detector start once. Clicks on controls are left to the page.
func (a *Agent) armRetry() {
	if a.retryRemove != nil || a.retried {
		return
	}
	a.logger.Debug("detector retry armed")
	a.retryRemove = a.doc.AddListener(model.EventClick, func(ev model.Event) {
		if model.IsInteractionTarget(ev.Target) {
			return
		}
		a.disarmRetry()
		a.retried = true
		if a.closed || !a.current.IsFindCloseEnabled {
			return
		}
		a.start(context.Background())
	})
}

func (a *Agent) disarmRetry() {
	if a.retryRemove != nil {
		a.retryRemove()
		a.retryRemove = nil
	}
}

func (a *Agent) notify(t protocol.Type) {
	if a.opts.Notifier != nil {
		a.opts.Notifier.Notify(protocol.Message{Type: t})
	}
}

func (a *Agent) guard(op string) {
	if r := recover(); r != nil {
		a.logger.Error("agent handler panicked", "op", op, "panic", r)
	}
}
