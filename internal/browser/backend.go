package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
)

// BackendName is the platform registry name of the live backend.
const BackendName = "browser"

func init() {
	platform.Register(BackendName, func(ctx context.Context, opts platform.ProviderOptions) (*platform.Provider, error) {
		s := NewSession(Config{
			RemoteURL: opts.RemoteURL,
			Headless:  opts.Headless,
			Stealth:   opts.Stealth,
			Viewport:  opts.Viewport,
		})
		return &platform.Provider{
			Name:          BackendName,
			Reader:        s,
			Screenshotter: s,
			Close:         s.Close,
		}, nil
	})
}

// Session is one browser with one lazily opened tab. It serves the
// platform Reader and Screenshotter concerns; the model documents
// it returns are not bound to input events.
type Session struct {
	mgr *Manager

	mu   sync.Mutex
	page *Page
}

// NewSession creates a session. Chrome starts on first use.
func NewSession(cfg Config) *Session {
	return &Session{mgr: NewManager(cfg)}
}

// Manager returns the session's browser manager.
func (s *Session) Manager() *Manager { return s.mgr }

// Page returns the session's tab, opening it on first use.
func (s *Session) Page(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return s.page, nil
	}
	rp, err := s.mgr.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	s.page = NewPage(rp, PageOptions{Logger: s.mgr.cfg.Logger})
	if err := s.page.Attach(ctx); err != nil {
		s.page = nil
		_ = rp.Close()
		return nil, err
	}
	return s.page, nil
}

// ReadDocument implements platform.Reader.
func (s *Session) ReadDocument(ctx context.Context, opts platform.ReadOptions) (*model.Document, error) {
	p, err := s.Page(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		if err := setViewport(p.Rod(), opts.Viewport); err != nil {
			return nil, fmt.Errorf("browser: set viewport: %w", err)
		}
	}

	switch {
	case opts.HTML != "":
		if err := p.Rod().Context(ctx).SetDocumentContent(opts.HTML); err != nil {
			return nil, fmt.Errorf("browser: set content: %w", err)
		}
	case opts.File != "":
		abs, err := filepath.Abs(opts.File)
		if err != nil {
			return nil, fmt.Errorf("browser: %s: %w", opts.File, err)
		}
		if err := s.mgr.Navigate(ctx, p.Rod(), "file://"+filepath.ToSlash(abs)); err != nil {
			return nil, err
		}
	case opts.URL != "":
		if err := s.mgr.Navigate(ctx, p.Rod(), opts.URL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("browser: nothing to read: set a URL, file or HTML")
	}

	if opts.Settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Settle):
		}
	}
	if err := p.Attach(ctx); err != nil {
		return nil, err
	}
	p.Reset()
	return p.Refresh(ctx)
}

// CaptureViewport implements platform.Screenshotter.
func (s *Session) CaptureViewport(ctx context.Context, opts platform.ScreenshotOptions) ([]byte, error) {
	p, err := s.Page(ctx)
	if err != nil {
		return nil, err
	}
	return p.Screenshot(ctx, screenshotRequest(opts))
}

// Close closes the tab and the browser.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.mgr.cfg.Logger.Debug("browser: close tab", "error", err)
		}
		s.page = nil
	}
	return s.mgr.Close()
}

func screenshotRequest(opts platform.ScreenshotOptions) *proto.PageCaptureScreenshot {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	switch opts.Format {
	case "jpg", "jpeg":
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		if opts.Quality > 0 {
			q := opts.Quality
			req.Quality = &q
		}
	}
	if opts.Clip != nil {
		req.Clip = &proto.PageViewport{
			X:      opts.Clip.X,
			Y:      opts.Clip.Y,
			Width:  opts.Clip.Width,
			Height: opts.Clip.Height,
			Scale:  1,
		}
	}
	return req
}
