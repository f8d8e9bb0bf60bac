// Package highlight owns the set of currently revealed close targets and the
// visual classes that reveal them.
package highlight

import (
	"log/slog"
	"time"

	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
)

// Default timings.
const (
	DefaultFrameDelay   = 16 * time.Millisecond
	DefaultCleanupDelay = 450 * time.Millisecond
)

// Finder produces the ranked, non-overlapping targets of a document.
type Finder interface {
	Find(doc *model.Document) []*model.Element
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(doc *model.Document) []*model.Element

// Find implements Finder.
func (f FinderFunc) Find(doc *model.Document) []*model.Element { return f(doc) }

// Options configure a Controller.
type Options struct {
	Finder       Finder
	Scheduler    loop.Scheduler
	FrameDelay   time.Duration // Delay before the active class is committed
	CleanupDelay time.Duration // Fallback delay for marker removal after clear
	Logger       *slog.Logger

	// OnActivate is called when an element joins the active set and
	// OnDeactivate when it leaves, by clear or by pruning.
	OnActivate   func(*model.Element)
	OnDeactivate func(*model.Element)
}

// ScanResult summarises one scan pass.
type ScanResult struct {
	Source      string        `yaml:"source"                json:"source"`
	FoundCount  int           `yaml:"found_count"           json:"foundCount"`
	AddedCount  int           `yaml:"added_count"           json:"addedCount"`
	TotalActive int           `yaml:"total_active"          json:"totalActive"`
	StyleReady  bool          `yaml:"style_ready"           json:"styleReady"`
	Found       []model.Brief `yaml:"found,omitempty"       json:"foundButtons,omitempty"`
	Added       []model.Brief `yaml:"added,omitempty"       json:"addedElements,omitempty"`
}

// ClearResult summarises one clear.
type ClearResult struct {
	ClearedCount int `yaml:"cleared_count" json:"clearedCount"`
	TotalActive  int `yaml:"total_active"  json:"totalActive"`
}

// Controller owns the active set of one document context. It is not safe
// for concurrent use; call it from the context's loop.
type Controller struct {
	doc  *model.Document
	opts Options

	active   []*model.Element
	commits  map[*model.Element]loop.Timer
	cleanups map[*model.Element]*cleanup
}

// cleanup is the deferred marker removal of one cleared element. It resolves
// exactly once, by transitionend, by the fallback timer or by cancellation.
type cleanup struct {
	done           bool
	timer          loop.Timer
	removeListener func()
}

// New returns a controller for doc.
func New(doc *model.Document, opts Options) *Controller {
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = DefaultFrameDelay
	}
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = DefaultCleanupDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		doc:      doc,
		opts:     opts,
		commits:  map[*model.Element]loop.Timer{},
		cleanups: map[*model.Element]*cleanup{},
	}
}

// Document returns the controlled document.
func (c *Controller) Document() *model.Document { return c.doc }

// SetHooks replaces the activation hooks.
func (c *Controller) SetHooks(onActivate, onDeactivate func(*model.Element)) {
	c.opts.OnActivate = onActivate
	c.opts.OnDeactivate = onDeactivate
}

// Active returns a copy of the active set in insertion order.
func (c *Controller) Active() []*model.Element {
	return append([]*model.Element(nil), c.active...)
}

// IsActive reports whether el is in the active set.
func (c *Controller) IsActive(el *model.Element) bool {
	for _, a := range c.active {
		if a == el {
			return true
		}
	}
	return false
}

// RunScan finds the targets of the document, makes sure the stylesheet is
// present where they live and reveals every target not already active.
// Re-running on an unchanged tree adds nothing.
func (c *Controller) RunScan(source string) ScanResult {
	c.prune()

	targets := c.opts.Finder.Find(c.doc)
	styleReady := c.ensureStyles(targets)

	var added []*model.Element
	for _, el := range targets {
		if c.IsActive(el) {
			continue
		}
		c.cancelCleanup(el)
		el.AddClass(MarkerClass)
		if c.opts.OnActivate != nil {
			c.opts.OnActivate(el)
		}
		c.commits[el] = c.opts.Scheduler.AfterFunc(c.opts.FrameDelay, func() {
			delete(c.commits, el)
			el.AddClass(ActiveClass)
		})
		c.active = append(c.active, el)
		added = append(added, el)
	}

	res := ScanResult{
		Source:      source,
		FoundCount:  len(targets),
		AddedCount:  len(added),
		TotalActive: len(c.active),
		StyleReady:  styleReady,
		Found:       model.Briefs(targets),
		Added:       model.Briefs(added),
	}
	c.opts.Logger.Debug("scan applied",
		"source", source,
		"url", c.doc.URL,
		"found", res.FoundCount,
		"added", res.AddedCount,
		"total", res.TotalActive,
		"style_ready", styleReady)
	return res
}

// ClearScan hides every active element and empties the active set. Marker
// removal completes on the element's transform transitionend or after the
// cleanup delay, whichever comes first.
func (c *Controller) ClearScan() ClearResult {
	cleared := len(c.active)
	for _, el := range c.active {
		if c.opts.OnDeactivate != nil {
			c.opts.OnDeactivate(el)
		}
		c.cancelCommit(el)
		el.RemoveClass(ActiveClass)
		c.scheduleCleanup(el)
	}
	c.active = nil
	c.opts.Logger.Debug("scan cleared", "url", c.doc.URL, "cleared", cleared)
	return ClearResult{ClearedCount: cleared, TotalActive: 0}
}

// Close cancels every pending timer and listener without touching classes.
func (c *Controller) Close() {
	for el := range c.commits {
		c.cancelCommit(el)
	}
	for el := range c.cleanups {
		c.cancelCleanup(el)
	}
}

// prune drops disconnected members. They left the tree on their own, so no
// class cleanup is scheduled for them.
func (c *Controller) prune() {
	kept := c.active[:0]
	for _, el := range c.active {
		if el.IsConnected() {
			kept = append(kept, el)
			continue
		}
		c.cancelCommit(el)
		if c.opts.OnDeactivate != nil {
			c.opts.OnDeactivate(el)
		}
	}
	for i := len(kept); i < len(c.active); i++ {
		c.active[i] = nil
	}
	c.active = kept
}

func (c *Controller) ensureStyles(targets []*model.Element) bool {
	var docs []*model.Document
	seen := map[*model.Document]bool{}
	for _, el := range targets {
		if d := el.OwnerDocument(); d != nil && !seen[d] {
			seen[d] = true
			docs = append(docs, d)
		}
	}
	if len(docs) == 0 {
		return HasStylesheet(c.doc)
	}
	ready := true
	for _, d := range docs {
		if !EnsureStyles(d) {
			ready = false
		}
	}
	return ready
}

func (c *Controller) cancelCommit(el *model.Element) {
	if t, ok := c.commits[el]; ok {
		t.Stop()
		delete(c.commits, el)
	}
}

func (c *Controller) scheduleCleanup(el *model.Element) {
	c.cancelCleanup(el)
	cl := &cleanup{}
	finish := func() {
		if cl.done {
			return
		}
		c.resolve(el, cl)
		el.RemoveClass(MarkerClass)
	}
	cl.removeListener = el.AddListener(model.EventTransitionEnd, func(ev model.Event) {
		if ev.PropertyName == "transform" {
			finish()
		}
	})
	cl.timer = c.opts.Scheduler.AfterFunc(c.opts.CleanupDelay, finish)
	c.cleanups[el] = cl
}

func (c *Controller) cancelCleanup(el *model.Element) {
	if cl, ok := c.cleanups[el]; ok && !cl.done {
		c.resolve(el, cl)
	}
}

func (c *Controller) resolve(el *model.Element, cl *cleanup) {
	cl.done = true
	cl.timer.Stop()
	cl.removeListener()
	if c.cleanups[el] == cl {
		delete(c.cleanups, el)
	}
}
