package detect

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/mj1618/findclose/internal/model"
)

// PrefilterSelectors is the structural pre-filter expressed as CSS. Prefilter
// implements the same set natively for the element model.
var PrefilterSelectors = []string{
	`button`,
	`a`,
	`input[type="button"]`,
	`input[type="image"]`,
	`input[type="submit"]`,
	`[role="button"]`,
	`[onclick]`,
	`[tabindex]`,
	`[id="batsu"]`,
	`[class*="close" i]`,
	`[class*="dismiss" i]`,
	`[class*="cancel" i]`,
	`[id*="close" i]`,
	`[id*="dismiss" i]`,
	`[id*="cancel" i]`,
	`[aria-label*="close" i]`,
	`[aria-label*="dismiss" i]`,
	`[title*="close" i]`,
	`[data-zone*="close" i]`,
	`[data-dismiss]`,
	`[data-close]`,
}

// Prefilter reports whether el matches the broad structural pre-filter.
func Prefilter(el *model.Element) bool {
	if el.IsShadowRoot() {
		return false
	}
	switch el.Tag {
	case "button", "a":
		return true
	case "input":
		switch strings.ToLower(el.GetAttr("type")) {
		case "button", "image", "submit":
			return true
		}
	}
	if el.Role() == "button" {
		return true
	}
	for _, name := range []string{"onclick", "tabindex", "data-dismiss", "data-close"} {
		if el.HasAttr(name) {
			return true
		}
	}
	if el.IDAttr() == "batsu" {
		return true
	}
	return containsFold(el.ClassName(), "close", "dismiss", "cancel") ||
		containsFold(el.IDAttr(), "close", "dismiss", "cancel") ||
		containsFold(el.GetAttr("aria-label"), "close", "dismiss") ||
		containsFold(el.GetAttr("title"), "close") ||
		containsFold(el.GetAttr("data-zone"), "close")
}

func containsFold(value string, subs ...string) bool {
	if value == "" {
		return false
	}
	v := strings.ToLower(value)
	for _, s := range subs {
		if strings.Contains(v, s) {
			return true
		}
	}
	return false
}

// QueryDeep returns the elements under root matching fn, descending into
// every open shadow root reachable from it. The root itself is included
// unless it is a shadow root. Results are deduplicated.
func QueryDeep(root *model.Element, fn func(*model.Element) bool) []*model.Element {
	var out []*model.Element
	seen := map[*model.Element]bool{}
	visited := map[*model.Element]bool{}
	stack := []*model.Element{root}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r == nil || visited[r] {
			continue
		}
		visited[r] = true

		var shadows []*model.Element
		visit := func(n *model.Element) bool {
			if fn(n) && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
			if n.Shadow != nil {
				shadows = append(shadows, n.Shadow)
			}
			return true
		}
		if r.IsShadowRoot() {
			for _, c := range r.Children {
				c.Walk(visit)
			}
		} else {
			r.Walk(visit)
		}
		stack = append(stack, shadows...)
	}
	return out
}

// Finder runs the whole detection pipeline over a document tree.
type Finder struct {
	Extractor *Extractor
	Logger    *slog.Logger
}

// NewFinder returns a finder using x, or default thresholds when x is nil.
func NewFinder(x *Extractor, logger *slog.Logger) *Finder {
	if x == nil {
		x = NewExtractor("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{Extractor: x, Logger: logger}
}

// SearchRoots returns doc and every same-origin frame document reachable from
// it, breadth first. Cross-origin frames are skipped.
func (f *Finder) SearchRoots(doc *model.Document) []*model.Document {
	var roots []*model.Document
	visited := map[*model.Document]bool{}
	queue := []*model.Document{doc}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d == nil || d.Root == nil || visited[d] {
			continue
		}
		visited[d] = true
		roots = append(roots, d)

		frames := QueryDeep(d.Root, func(e *model.Element) bool { return e.Tag == "iframe" })
		for _, fr := range frames {
			child, err := fr.ContentDocument()
			if errors.Is(err, model.ErrCrossOrigin) {
				f.Logger.Debug("skipping cross-origin frame", "src", fr.GetAttr("src"))
				continue
			}
			if child != nil && !visited[child] {
				queue = append(queue, child)
			}
		}
	}
	return roots
}

// Candidates returns every pre-filter match across the search roots in
// document visitation order, then pre-filter match order.
func (f *Finder) Candidates(doc *model.Document) []*model.Element {
	var out []*model.Element
	seen := map[*model.Element]bool{}
	for _, d := range f.SearchRoots(doc) {
		for _, el := range QueryDeep(d.Root, Prefilter) {
			if !seen[el] {
				seen[el] = true
				out = append(out, el)
			}
		}
	}
	return out
}

// Evaluation is the outcome of running one candidate through the pipeline.
type Evaluation struct {
	Element  *model.Element
	Visible  bool
	Signals  SignalSet
	Verdict  Verdict
	Selected bool // Accepted by the overlap resolver
}

// Evaluate classifies every candidate of doc. Valid candidates come first in
// rank order, followed by the rest in discovery order. Hidden candidates are
// not classified.
func (f *Finder) Evaluate(doc *model.Document) []Evaluation {
	cands := f.Candidates(doc)
	var valid, rest []Evaluation
	for _, el := range cands {
		ev := Evaluation{Element: el, Visible: f.Extractor.Visible(el)}
		if ev.Visible {
			ev.Signals = f.Extractor.Extract(el)
			ev.Verdict = Classify(ev.Signals)
		}
		if ev.Verdict.Valid {
			valid = append(valid, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	Rank(valid)

	ranked := make([]*model.Element, len(valid))
	for i := range valid {
		ranked[i] = valid[i].Element
	}
	selected := map[*model.Element]bool{}
	for _, el := range Resolve(ranked) {
		selected[el] = true
	}
	for i := range valid {
		valid[i].Selected = selected[valid[i].Element]
	}

	f.Logger.Debug("close scan evaluated",
		"url", doc.URL,
		"candidates", len(cands),
		"valid", len(valid),
		"selected", len(selected))
	return append(valid, rest...)
}

// Find returns the final, non-overlapping close targets of doc in rank order.
func (f *Finder) Find(doc *model.Document) []*model.Element {
	var out []*model.Element
	for _, ev := range f.Evaluate(doc) {
		if ev.Selected {
			out = append(out, ev.Element)
		}
	}
	return out
}
