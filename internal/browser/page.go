package browser

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
)

//go:embed page.js
var pageJS string

// BindingName is the page function page.js calls with input events.
const BindingName = "__findcloseInput"

// mirrorTimeout bounds one class or insertion round trip.
const mirrorTimeout = 5 * time.Second

// snapshotVars are the custom properties read from each document element.
var snapshotVars = []string{highlight.DurationProperty}

// evaluator runs a page.js expression. *rod.Page backs it in production.
type evaluator interface {
	eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
}

type rodEval struct{ page *rod.Page }

func (e rodEval) eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := e.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// Hooks receive page lifecycle events on the page's scheduler.
type Hooks struct {
	OnFrameAdded   func(*Frame)
	OnFrameRemoved func(*Frame)
	OnResize       func(f *Frame, width, height float64)
	OnVisibility   func(visible bool)
	OnPageShow     func(persisted bool)
}

// PageOptions configure a Page.
type PageOptions struct {
	// Scheduler receives input events and runs refreshes' model updates.
	// Every model document of the page belongs to it.
	Scheduler loop.Scheduler
	Hooks     Hooks
	Logger    *slog.Logger
}

// Page is a live tab mirrored into model documents. Refresh, Frames and the
// mirrored mutations must run on the page's scheduler.
type Page struct {
	rod    *rod.Page
	ev     evaluator
	opts   PageOptions
	logger *slog.Logger

	rec     *reconciler
	syncing bool
	hovered map[*model.Element]bool
	nextKey int

	stopBinding func() error
	removeJS    func() error
}

// NewPage wraps a rod page. Call Attach before Refresh and Bind to receive
// input events.
func NewPage(page *rod.Page, opts PageOptions) *Page {
	p := newPage(rodEval{page: page}, opts)
	p.rod = page
	return p
}

func newPage(ev evaluator, opts PageOptions) *Page {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Page{
		ev:      ev,
		opts:    opts,
		logger:  opts.Logger,
		rec:     newReconciler(),
		hovered: map[*model.Element]bool{},
	}
}

// Rod returns the underlying rod page.
func (p *Page) Rod() *rod.Page { return p.rod }

// Attach installs page.js in the current document and every document
// loaded later. It is idempotent.
func (p *Page) Attach(ctx context.Context) error {
	if p.rod == nil {
		return fmt.Errorf("browser: attach: no page")
	}
	page := p.rod.Context(ctx)
	if p.removeJS == nil {
		remove, err := page.EvalOnNewDocument(pageJS)
		if err != nil {
			return fmt.Errorf("browser: install script: %w", err)
		}
		p.removeJS = remove
	}
	if _, err := page.Eval(fmt.Sprintf("() => { %s }", pageJS)); err != nil {
		return fmt.Errorf("browser: inject script: %w", err)
	}
	return nil
}

// Bind exposes the input binding. Events are posted to the page's
// scheduler, which must be set.
func (p *Page) Bind(ctx context.Context) error {
	if p.opts.Scheduler == nil {
		return fmt.Errorf("browser: bind: no scheduler")
	}
	if p.stopBinding != nil {
		return nil
	}
	stop, err := p.rod.Context(ctx).Expose(BindingName, func(j gson.JSON) (interface{}, error) {
		ev := parseInput(j)
		p.opts.Scheduler.Post(func() { p.dispatch(ev) })
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("browser: expose binding: %w", err)
	}
	p.stopBinding = stop
	return nil
}

// Detach removes the binding and the install script.
func (p *Page) Detach() {
	if p.stopBinding != nil {
		if err := p.stopBinding(); err != nil {
			p.logger.Debug("browser: stop binding", "error", err)
		}
		p.stopBinding = nil
	}
	if p.removeJS != nil {
		if err := p.removeJS(); err != nil {
			p.logger.Debug("browser: remove script", "error", err)
		}
		p.removeJS = nil
	}
}

// Refresh snapshots the page and folds it into the model. It returns the
// top document.
func (p *Page) Refresh(ctx context.Context) (*model.Document, error) {
	snap, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return p.apply(snap), nil
}

func (p *Page) snapshot(ctx context.Context) (*docNode, error) {
	v, err := p.ev.eval(ctx, `(vars) => window.__findclose.snapshot(vars)`, snapshotVars)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	var snap docNode
	if err := v.Unmarshal(&snap); err != nil {
		return nil, fmt.Errorf("browser: decode snapshot: %w", err)
	}
	if snap.Root == nil {
		return nil, fmt.Errorf("browser: snapshot: no document element")
	}
	return &snap, nil
}

func (p *Page) apply(snap *docNode) *model.Document {
	p.syncing = true
	added, removed := p.rec.apply(snap, p.mirror)
	p.syncing = false

	for el := range p.hovered {
		if _, ok := p.rec.keys[el]; !ok {
			delete(p.hovered, el)
		}
	}
	for _, f := range removed {
		p.logger.Debug("browser: frame removed", "frame", f.Key, "url", f.Document.URL)
		if p.opts.Hooks.OnFrameRemoved != nil {
			p.opts.Hooks.OnFrameRemoved(f)
		}
	}
	for _, f := range added {
		p.logger.Debug("browser: frame added", "frame", f.Key, "url", f.Document.URL)
		if p.opts.Hooks.OnFrameAdded != nil {
			p.opts.Hooks.OnFrameAdded(f)
		}
	}
	return p.Top().Document
}

// Reset forgets every mirrored element and frame. The next Refresh builds
// fresh documents.
func (p *Page) Reset() {
	p.rec = newReconciler()
	p.hovered = map[*model.Element]bool{}
}

// Top returns the top document's frame, nil before the first refresh.
func (p *Page) Top() *Frame { return p.rec.frames[""] }

// Frames returns every same-origin document, top first.
func (p *Page) Frames() []*Frame { return p.rec.sortedFrames() }

// Element returns the model element for a page key.
func (p *Page) Element(key string) *model.Element { return p.rec.elems[key] }

// mirror reflects model mutations into the page. Mutations made while a
// snapshot is applied come from the page itself and are not echoed.
func (p *Page) mirror(m model.Mutation) {
	if p.syncing {
		return
	}
	key, ok := p.rec.keys[m.Target]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	switch m.Kind {
	case model.MutationClass:
		v, err := p.ev.eval(ctx, `(key, name, added) => window.__findclose.setClass(key, name, added)`, key, m.Name, m.Added)
		if err != nil {
			p.logger.Warn("browser: mirror class failed", "class", m.Name, "error", err)
			return
		}
		if !v.Bool() {
			p.logger.Debug("browser: mirror target gone", "key", key)
		}
	case model.MutationInsert:
		c := m.Child
		if c == nil {
			return
		}
		p.nextKey++
		ckey := "g" + strconv.Itoa(p.nextKey)
		if _, err := p.ev.eval(ctx, `(parent, key, tag, attrs, text) => window.__findclose.insert(parent, key, tag, attrs, text)`,
			key, ckey, c.Tag, c.Attrs, c.Text); err != nil {
			p.logger.Warn("browser: mirror insert failed", "tag", c.Tag, "error", err)
			return
		}
		p.rec.register(c, ckey)
	}
}

// MoveMouse moves the pointer in top-document coordinates.
func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	if err := p.rod.Context(ctx).Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("browser: move mouse: %w", err)
	}
	return nil
}

// Screenshot captures the viewport, or clip when set.
func (p *Page) Screenshot(ctx context.Context, req *proto.PageCaptureScreenshot) ([]byte, error) {
	data, err := p.rod.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close detaches and closes the tab.
func (p *Page) Close() error {
	p.Detach()
	if p.rod == nil {
		return nil
	}
	return p.rod.Close()
}
