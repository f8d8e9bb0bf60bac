// Package hub is the background coordinator. It owns the cached enable
// preference, keeps the toolbar icon in step with it and fans shake events
// out to every frame of a tab.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mj1618/findclose/internal/protocol"
	"github.com/mj1618/findclose/internal/settings"
)

// Icon paths, relative to the extension root.
const (
	IconOn  = "./images/toolbar-icon-on.svg"
	IconOff = "./images/toolbar-icon.svg"
)

// IconPath returns the toolbar icon for the enable state.
func IconPath(enabled bool) string {
	if enabled {
		return IconOn
	}
	return IconOff
}

// IconSetter renders the toolbar icon of a tab. A tabID of 0 means the
// active tab.
type IconSetter interface {
	SetIcon(ctx context.Context, tabID int, path string) error
}

// IconFunc adapts a function to IconSetter.
type IconFunc func(ctx context.Context, tabID int, path string) error

// SetIcon implements IconSetter.
func (f IconFunc) SetIcon(ctx context.Context, tabID int, path string) error {
	return f(ctx, tabID, path)
}

// FrameLister enumerates the frames of a tab.
type FrameLister interface {
	Frames(ctx context.Context, tabID int) ([]protocol.Frame, error)
}

// Sender identifies the frame a message came from.
type Sender struct {
	TabID   int
	FrameID int
}

// Options configure a Hub.
type Options struct {
	Store        settings.Store
	Icons        IconSetter
	Frames       FrameLister
	FrameTimeout time.Duration // Per-frame reply timeout for broadcasts
	Logger       *slog.Logger
}

// Hub is safe for concurrent use.
type Hub struct {
	opts Options

	mu      sync.Mutex
	cache   settings.Settings
	unwatch func()
}

// New returns a hub. Call Start to load the stored preference.
func New(opts Options) *Hub {
	if opts.Store == nil {
		opts.Store = settings.NewMemoryStore(settings.Defaults())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{opts: opts, cache: settings.Defaults()}
}

// Start loads the preference, follows its changes and paints the icon of the
// active tab. Load failures are logged and the defaults kept.
func (h *Hub) Start(ctx context.Context) {
	h.load(ctx)
	h.mu.Lock()
	if h.unwatch == nil {
		h.unwatch = h.opts.Store.Watch(func(c settings.Change) {
			h.mu.Lock()
			h.cache = c.New
			h.mu.Unlock()
		})
	}
	h.mu.Unlock()
	h.setIcon(ctx, 0)
}

// Close stops following preference changes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unwatch != nil {
		h.unwatch()
		h.unwatch = nil
	}
}

// Enabled returns the cached enable flag.
func (h *Hub) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache.IsFindCloseEnabled
}

// Toggle flips the enable flag, as a click on the toolbar icon does, and
// repaints tabID's icon. A save failure is logged; the new state is kept in
// memory.
func (h *Hub) Toggle(ctx context.Context, tabID int) settings.Settings {
	h.mu.Lock()
	h.cache.IsFindCloseEnabled = !h.cache.IsFindCloseEnabled
	next := h.cache
	h.mu.Unlock()

	if err := h.opts.Store.Save(ctx, next); err != nil {
		h.opts.Logger.Error("failed to save settings", "error", err)
	}
	h.setIcon(ctx, tabID)
	return next
}

// TabUpdated repaints the icon of a tab that finished loading.
func (h *Hub) TabUpdated(ctx context.Context, tabID int) {
	h.setIcon(ctx, tabID)
}

// HandleMessage serves a message sent by a frame agent. For shake-start and
// shake-end it returns the per-frame results of the fan-out; the sending
// frame is skipped since it already handled the shake itself.
func (h *Hub) HandleMessage(ctx context.Context, from Sender, msg protocol.Message) ([]protocol.Result, error) {
	switch msg.Type {
	case protocol.TypeUpdateIcon:
		h.setIcon(ctx, 0)
		return nil, nil
	case protocol.TypeShakeStart:
		return h.fanOut(ctx, from, protocol.TypeRunShakeScan), nil
	case protocol.TypeShakeEnd:
		return h.fanOut(ctx, from, protocol.TypeClearShakeScan), nil
	default:
		return nil, protocol.Unknown(msg)
	}
}

// Broadcast sends msg to every frame of tabID.
func (h *Hub) Broadcast(ctx context.Context, tabID int, msg protocol.Message) []protocol.Result {
	return h.broadcast(ctx, tabID, msg, nil)
}

func (h *Hub) fanOut(ctx context.Context, from Sender, t protocol.Type) []protocol.Result {
	if from.TabID == 0 {
		return nil
	}
	exclude := func(info protocol.FrameInfo) bool { return info.ID == from.FrameID }
	results := h.broadcast(ctx, from.TabID, protocol.Message{Type: t}, exclude)
	s := protocol.Summarize(results)
	h.opts.Logger.Debug("frame fan-out",
		"type", t,
		"tab", from.TabID,
		"frames", s.Frames,
		"ok", s.OK,
		"failed", s.Failed)
	return results
}

func (h *Hub) broadcast(ctx context.Context, tabID int, msg protocol.Message, exclude func(protocol.FrameInfo) bool) []protocol.Result {
	if h.opts.Frames == nil {
		return nil
	}
	frames, err := h.opts.Frames.Frames(ctx, tabID)
	if err != nil {
		h.opts.Logger.Warn("failed to get frames", "tab", tabID, "error", err)
		return nil
	}
	return protocol.Broadcast(ctx, frames, msg, protocol.BroadcastOptions{
		Timeout: h.opts.FrameTimeout,
		Exclude: exclude,
		Logger:  h.opts.Logger,
	})
}

func (h *Hub) load(ctx context.Context) {
	s, err := h.opts.Store.Load(ctx)
	if err != nil {
		h.opts.Logger.Error("failed to load settings", "error", err)
		return
	}
	h.mu.Lock()
	h.cache = s
	h.mu.Unlock()
}

func (h *Hub) setIcon(ctx context.Context, tabID int) {
	if h.opts.Icons == nil {
		return
	}
	path := IconPath(h.Enabled())
	if err := h.opts.Icons.SetIcon(ctx, tabID, path); err != nil {
		h.opts.Logger.Warn("failed to set icon", "tab", tabID, "error", err)
	}
}
