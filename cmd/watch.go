package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mj1618/findclose/internal/agent"
	"github.com/mj1618/findclose/internal/browser"
	"github.com/mj1618/findclose/internal/config"
	"github.com/mj1618/findclose/internal/hub"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/protocol"
	"github.com/mj1618/findclose/internal/settings"
	"github.com/spf13/cobra"
)

// watchTab is the tab ID of the single watched page.
const watchTab = 1

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open a page and highlight close buttons when the pointer is shaken",
	Long: `Open a page in a Chrome window and run a frame agent in the top document and
every same-origin frame. Shaking the mouse over the page reveals the close
buttons of its overlays; they stay highlighted while hovered.

Detection follows the persisted preference (see "findclose settings"); pass
--enable to switch it on first. Stop with Ctrl+C.

Examples:
  findclose watch --url https://news.example --enable
  findclose watch --file testdata/modal.html --refresh 500ms
  findclose watch --file modal.html --enable --replay wiggle.jsonl`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("url", "", "Page URL")
	watchCmd.Flags().String("file", "", "Local HTML file")
	watchCmd.Flags().Bool("headless", false, "Run Chrome without a window")
	watchCmd.Flags().Bool("enable", false, "Enable detection in the settings before starting")
	watchCmd.Flags().Duration("refresh", time.Second, "How often the page is re-read into the model")
	watchCmd.Flags().String("settings", "", "Settings file (default from config)")
	watchCmd.Flags().String("replay", "", "Pointer recording (see \"findclose shake\") to play into the page once loaded")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target, _ := cmd.Flags().GetString("url")
	file, _ := cmd.Flags().GetString("file")
	headless, _ := cmd.Flags().GetBool("headless")
	enable, _ := cmd.Flags().GetBool("enable")
	refresh, _ := cmd.Flags().GetDuration("refresh")
	settingsPath, _ := cmd.Flags().GetString("settings")
	replayFile, _ := cmd.Flags().GetString("replay")

	if file != "" {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		target = "file://" + filepath.ToSlash(abs)
	}
	if target == "" {
		return fmt.Errorf("one of --url or --file is required")
	}
	if refresh <= 0 {
		return fmt.Errorf("--refresh must be positive")
	}
	var recording []shakeSample
	if replayFile != "" {
		f, err := os.Open(replayFile)
		if err != nil {
			return err
		}
		recording, err = readSamples(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", replayFile, err)
		}
	}

	if settingsPath == "" {
		settingsPath = appCfg.Settings.Path
	}
	if settingsPath == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return err
		}
		settingsPath = p
	}
	store := settings.NewFileStore(settingsPath, logger)
	if enable {
		if err := store.Save(ctx, settings.Settings{IsFindCloseEnabled: true}); err != nil {
			return err
		}
	}

	bcfg := browserConfig(appCfg)
	bcfg.Headless = headless
	mgr := browser.NewManager(bcfg)
	defer mgr.Close()

	rp, err := mgr.NewPage(ctx)
	if err != nil {
		return err
	}

	lp := loop.New(0, logger)
	s := newWatchSession(ctx, store, appCfg, lp, logger)
	page := browser.NewPage(rp, browser.PageOptions{Scheduler: lp, Hooks: s.hooks(), Logger: logger})
	defer page.Close()

	s.hub = hub.New(hub.Options{Store: store, Icons: hub.IconFunc(s.setIcon), Frames: s, Logger: logger})
	s.hub.Start(ctx)
	defer s.hub.Close()

	if err := page.Bind(ctx); err != nil {
		return err
	}
	if err := page.Attach(ctx); err != nil {
		return err
	}
	if err := mgr.Navigate(ctx, rp, target); err != nil {
		return err
	}
	s.hub.TabUpdated(ctx, watchTab)

	loopErr := make(chan error, 1)
	go func() { loopErr <- lp.Run(ctx) }()

	resync := func() {
		if err := lp.Do(ctx, func() {
			if _, err := page.Refresh(ctx); err != nil {
				logger.Debug("page refresh failed", "error", err)
			}
		}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("page refresh not run", "error", err)
		}
	}
	resync()
	logger.Info("watching page", "url", target, "enabled", s.hub.Enabled(), "settings", store.Path())

	if len(recording) > 0 {
		go func() {
			if err := playPointer(ctx, page, recording); err != nil && ctx.Err() == nil {
				logger.Warn("pointer replay failed", "error", err)
				return
			}
			logger.Info("pointer replay finished", "samples", len(recording))
		}()
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-loopErr
			s.closeAll()
			logger.Info("watch stopped")
			return nil
		case err := <-loopErr:
			s.closeAll()
			return err
		case <-ticker.C:
			resync()
		}
	}
}

// pointerMover moves the page's real pointer.
type pointerMover interface {
	MoveMouse(ctx context.Context, x, y float64) error
}

// playPointer moves the pointer through a recording at its original pace,
// so the page's own detector sees a real gesture. Motion-only lines are
// skipped.
func playPointer(ctx context.Context, m pointerMover, samples []shakeSample) error {
	start := time.Now()
	for _, s := range samples {
		if s.Acceleration != nil {
			continue
		}
		if wait := time.Until(start.Add(time.Duration(s.T) * time.Millisecond)); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := m.MoveMouse(ctx, s.X, s.Y); err != nil {
			return err
		}
	}
	return nil
}

// watchSession runs one agent per frame of the watched page. Agents are
// created and closed on the loop; the frame table is also read by the hub.
type watchSession struct {
	ctx    context.Context
	store  settings.Store
	cfg    config.Config
	lp     *loop.Loop
	logger *slog.Logger
	hub    *hub.Hub

	mu     sync.Mutex
	nextID int
	frames map[string]*watchFrame
}

type watchFrame struct {
	id    int
	agent *agent.Agent
}

func newWatchSession(ctx context.Context, store settings.Store, cfg config.Config, lp *loop.Loop, logger *slog.Logger) *watchSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &watchSession{
		ctx:    ctx,
		store:  store,
		cfg:    cfg,
		lp:     lp,
		logger: logger,
		nextID: 1,
		frames: map[string]*watchFrame{},
	}
}

func (s *watchSession) hooks() browser.Hooks {
	return browser.Hooks{
		OnFrameAdded:   s.frameAdded,
		OnFrameRemoved: s.frameRemoved,
		OnResize: func(f *browser.Frame, width, height float64) {
			if wf := s.frame(f.Key); wf != nil {
				wf.agent.Resize(width, height)
			}
		},
		OnVisibility: func(visible bool) {
			for _, wf := range s.all() {
				wf.agent.VisibilityChanged(s.ctx, visible)
			}
		},
		OnPageShow: func(persisted bool) {
			for _, wf := range s.all() {
				wf.agent.PageShow(s.ctx, persisted)
			}
		},
	}
}

func (s *watchSession) frameAdded(f *browser.Frame) {
	s.mu.Lock()
	id := 0
	if !f.IsTop() {
		id = s.nextID
		s.nextID++
	}
	parent := -1
	if !f.IsTop() {
		parent = 0
		if p := s.frames[f.ParentKey]; p != nil {
			parent = p.id
		}
	}
	s.mu.Unlock()

	cfg := s.cfg
	a := agent.New(agent.Options{
		Document:      f.Document,
		FrameID:       id,
		ParentFrameID: parent,
		IsTop:         f.IsTop(),
		Platform:      agent.Platform{Desktop: true},
		Scheduler:     s.lp,
		Runner:        s.lp,
		Store:         s.store,
		Config:        &cfg,
		Motion:        f.Feed,
		Pointer:       f.Feed,
		Notifier: agent.NotifierFunc(func(msg protocol.Message) {
			// The hub answers by sending to agents on this loop.
			go s.forward(id, msg)
		}),
		SyncFrames: true,
		Logger:     s.logger,
	})

	s.mu.Lock()
	s.frames[f.Key] = &watchFrame{id: id, agent: a}
	s.mu.Unlock()

	a.Init(s.ctx)
	s.logger.Debug("frame agent started", "frame", id, "parent", parent, "url", f.Document.URL)
}

func (s *watchSession) frameRemoved(f *browser.Frame) {
	s.mu.Lock()
	wf := s.frames[f.Key]
	delete(s.frames, f.Key)
	s.mu.Unlock()
	if wf != nil {
		wf.agent.Close()
		s.logger.Debug("frame agent closed", "frame", wf.id)
	}
}

// forward hands an agent's notification to the hub.
func (s *watchSession) forward(frameID int, msg protocol.Message) {
	results, err := s.hub.HandleMessage(s.ctx, hub.Sender{TabID: watchTab, FrameID: frameID}, msg)
	if err != nil {
		s.logger.Warn("hub rejected message", "type", msg.Type, "error", err)
		return
	}
	if len(results) > 0 {
		sum := protocol.Summarize(results)
		s.logger.Info("frames updated", "type", msg.Type, "frames", sum.Frames, "ok", sum.OK, "failed", sum.Failed)
	}
}

func (s *watchSession) setIcon(_ context.Context, tabID int, path string) error {
	s.logger.Info("icon", "tab", tabID, "path", path)
	return nil
}

// Frames implements hub.FrameLister.
func (s *watchSession) Frames(_ context.Context, tabID int) ([]protocol.Frame, error) {
	if tabID != watchTab {
		return nil, fmt.Errorf("unknown tab %d", tabID)
	}
	var out []protocol.Frame
	for _, wf := range s.all() {
		out = append(out, wf.agent)
	}
	return out, nil
}

func (s *watchSession) frame(key string) *watchFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[key]
}

// all returns the frames ordered by ID, top first.
func (s *watchSession) all() []*watchFrame {
	s.mu.Lock()
	out := make([]*watchFrame, 0, len(s.frames))
	for _, wf := range s.frames {
		out = append(out, wf)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// closeAll closes every agent. Call it once the loop has stopped.
func (s *watchSession) closeAll() {
	for _, wf := range s.all() {
		wf.agent.Close()
	}
	s.mu.Lock()
	s.frames = map[string]*watchFrame{}
	s.mu.Unlock()
}
