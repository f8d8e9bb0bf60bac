package browser

import (
	"sort"

	"github.com/mj1618/findclose/internal/gesture"
	"github.com/mj1618/findclose/internal/model"
)

// docNode is one document as serialized by page.js.
type docNode struct {
	URL      string            `json:"url"`
	Viewport model.Size        `json:"viewport"`
	Sheets   []string          `json:"sheets"`
	Vars     map[string]string `json:"vars"`
	Root     *elemNode         `json:"root"`
}

type elemNode struct {
	Key      string            `json:"key"`
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs"`
	Text     string            `json:"text"`
	Style    styleNode         `json:"style"`
	Rect     model.Rect        `json:"rect"`
	OnClick  bool              `json:"onclick"`
	Editable bool              `json:"editable"`
	Children []*elemNode       `json:"children"`
	Shadow   *shadowNode       `json:"shadow"`
	Frame    *frameNode        `json:"frame"`
}

type styleNode struct {
	Display       string  `json:"display"`
	Visibility    string  `json:"visibility"`
	Opacity       float64 `json:"opacity"`
	Cursor        string  `json:"cursor"`
	PointerEvents string  `json:"pointerEvents"`
	Before        string  `json:"before"`
	After         string  `json:"after"`
}

type shadowNode struct {
	Key      string      `json:"key"`
	Children []*elemNode `json:"children"`
}

// frameNode is either a cross-origin marker or an inline docNode.
type frameNode struct {
	CrossOrigin bool `json:"crossOrigin"`
	docNode
}

// Frame is one same-origin document of a page. The top document has an
// empty key; frame documents are keyed by their frame element.
type Frame struct {
	Key       string
	ParentKey string // Empty for the top document and its direct frames
	Document  *model.Document
	Feed      *gesture.Feed // Pointer and motion samples from this document
}

// IsTop reports whether f is the page's top document.
func (f *Frame) IsTop() bool { return f.Key == "" }

// reconciler maps page nodes onto model elements. Elements are reused by
// key so highlight state survives refreshes.
type reconciler struct {
	elems  map[string]*model.Element
	keys   map[*model.Element]string
	frames map[string]*Frame

	seen       map[string]bool
	seenFrames map[string]bool
	added      []*Frame
}

func newReconciler() *reconciler {
	return &reconciler{
		elems:  map[string]*model.Element{},
		keys:   map[*model.Element]string{},
		frames: map[string]*Frame{},
	}
}

// apply folds a snapshot into the model and returns the frames that
// appeared and disappeared.
func (r *reconciler) apply(snap *docNode, onMutation func(model.Mutation)) (added, removed []*Frame) {
	r.seen = map[string]bool{}
	r.seenFrames = map[string]bool{}
	r.added = nil

	r.document("", "", snap, onMutation)

	for key, el := range r.elems {
		if !r.seen[key] {
			delete(r.elems, key)
			delete(r.keys, el)
		}
	}
	for key, f := range r.frames {
		if !r.seenFrames[key] {
			removed = append(removed, f)
			delete(r.frames, key)
		}
	}
	sortFrames(r.added)
	sortFrames(removed)
	return r.added, removed
}

func (r *reconciler) document(key, parent string, d *docNode, onMutation func(model.Mutation)) *Frame {
	r.seenFrames[key] = true
	var root *model.Element
	if d.Root != nil {
		root = r.element(d.Root, key, onMutation)
	}

	f := r.frames[key]
	if f == nil {
		f = &Frame{
			Key:       key,
			ParentKey: parent,
			Document:  model.NewDocument(d.URL, d.Viewport, root),
			Feed:      gesture.NewFeed(),
		}
		f.Document.OnMutation = onMutation
		r.frames[key] = f
		r.added = append(r.added, f)
	} else {
		f.Document.URL = d.URL
		f.Document.Viewport = d.Viewport
		if root != nil && f.Document.Root != root {
			f.Document.SetRoot(root)
		}
	}
	f.Document.StyleSheets = d.Sheets
	if root != nil {
		root.Style.Vars = d.Vars
	}
	return f
}

func (r *reconciler) element(n *elemNode, frameKey string, onMutation func(model.Mutation)) *model.Element {
	el := r.elems[n.Key]
	if el == nil || el.Tag != n.Tag {
		el = model.NewElement(n.Tag)
		r.elems[n.Key] = el
		r.keys[el] = n.Key
	}
	r.seen[n.Key] = true

	attrs := make(map[string]string, len(n.Attrs))
	for k, v := range n.Attrs {
		attrs[k] = v
	}
	el.Attrs = attrs
	el.Text = n.Text
	el.Style = model.Style{
		Display:       n.Style.Display,
		Visibility:    n.Style.Visibility,
		Opacity:       n.Style.Opacity,
		Cursor:        n.Style.Cursor,
		PointerEvents: n.Style.PointerEvents,
		Before:        n.Style.Before,
		After:         n.Style.After,
	}
	el.Rect = n.Rect
	el.OnClick = n.OnClick
	el.Editable = n.Editable

	kids := make([]*model.Element, 0, len(n.Children))
	for _, c := range n.Children {
		kids = append(kids, r.element(c, frameKey, onMutation))
	}
	el.SetChildren(kids...)

	if n.Shadow != nil {
		r.shadow(el, n.Shadow, frameKey, onMutation)
	} else {
		el.Shadow = nil
	}

	if n.Frame != nil {
		if n.Frame.CrossOrigin {
			el.SetCrossOrigin()
		} else {
			f := r.document(n.Key, frameKey, &n.Frame.docNode, onMutation)
			el.SetContentDocument(f.Document)
		}
	}
	return el
}

func (r *reconciler) shadow(host *model.Element, n *shadowNode, frameKey string, onMutation func(model.Mutation)) {
	kids := make([]*model.Element, 0, len(n.Children))
	for _, c := range n.Children {
		kids = append(kids, r.element(c, frameKey, onMutation))
	}
	root := r.elems[n.Key]
	if root == nil || host.Shadow != root {
		root = host.AttachShadow()
		r.elems[n.Key] = root
		r.keys[root] = n.Key
	}
	r.seen[n.Key] = true
	root.SetChildren(kids...)
}

// register records a model-created element under key.
func (r *reconciler) register(el *model.Element, key string) {
	r.elems[key] = el
	r.keys[el] = key
}

// sortedFrames returns the frames with the top document first.
func (r *reconciler) sortedFrames() []*Frame {
	out := make([]*Frame, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f)
	}
	sortFrames(out)
	return out
}

func sortFrames(fs []*Frame) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].IsTop() != fs[j].IsTop() {
			return fs[i].IsTop()
		}
		return fs[i].Key < fs[j].Key
	})
}
