package model

import (
	"net/url"
	"strings"
)

// Size is a viewport size in CSS pixels.
type Size struct {
	Width  float64 `yaml:"width"  json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// MutationKind classifies a tree mutation.
type MutationKind int

const (
	MutationClass  MutationKind = iota // Class added to or removed from Target
	MutationInsert                     // Child appended to Target
)

// Mutation describes a change made through the model API. Live backends
// subscribe to mutations to mirror them into the real page.
type Mutation struct {
	Kind   MutationKind
	Target *Element
	Name   string // Class name for MutationClass
	Added  bool   // Class added (true) or removed (false)
	Child  *Element
}

// Document is one document of the element tree: the top page, a
// same-origin frame's document, or a parsed snapshot.
type Document struct {
	URL          string
	Viewport     Size
	Root         *Element // The <html> element
	StyleSheets  []string // hrefs of linked stylesheets
	FrameElement *Element // The frame element hosting this document, if any

	// OnMutation, when set, is called for every class change and insertion.
	OnMutation func(Mutation)

	nextID    int
	listeners map[string][]*listener
}

// NewDocument adopts root into a new document and assigns element IDs.
func NewDocument(rawURL string, viewport Size, root *Element) *Document {
	d := &Document{URL: rawURL, Viewport: viewport}
	if root != nil {
		d.SetRoot(root)
	}
	return d
}

// SetRoot replaces the document element.
func (d *Document) SetRoot(root *Element) {
	if d.Root != nil && d.Root != root {
		d.Root.doc = nil
	}
	d.Root = root
	root.Parent = nil
	d.adopt(root)
}

// Hostname returns the host part of the document URL.
func (d *Document) Hostname() string {
	u, err := url.Parse(d.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Head returns the <head> element, if any.
func (d *Document) Head() *Element { return d.childByTag("head") }

// Body returns the <body> element, if any.
func (d *Document) Body() *Element { return d.childByTag("body") }

func (d *Document) childByTag(tag string) *Element {
	if d.Root == nil {
		return nil
	}
	for _, c := range d.Root.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// GetElementByID returns the first light-tree element with the id.
func (d *Document) GetElementByID(id string) *Element {
	if d.Root == nil || id == "" {
		return nil
	}
	var found *Element
	d.Root.Walk(func(n *Element) bool {
		if found != nil {
			return false
		}
		if n.Attrs["id"] == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// CreateElement creates an element owned by d but not yet inserted.
func (d *Document) CreateElement(tag string) *Element {
	e := NewElement(tag)
	d.adopt(e)
	return e
}

// ElementByNumericID finds an element by its numeric ID, searching shadow
// roots but not nested frame documents.
func (d *Document) ElementByNumericID(id int) *Element {
	if d.Root == nil {
		return nil
	}
	var found *Element
	var visit func(*Element) bool
	visit = func(n *Element) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		if n.Shadow != nil {
			n.Shadow.Walk(visit)
		}
		return true
	}
	d.Root.Walk(visit)
	return found
}

// HasStyleSheet reports whether a linked stylesheet href contains path.
func (d *Document) HasStyleSheet(path string) bool {
	for _, href := range d.StyleSheets {
		if strings.Contains(href, path) {
			return true
		}
	}
	return false
}

// adopt sets d as owner of e's subtree (including shadow roots) and assigns
// IDs to elements that do not have one yet.
func (d *Document) adopt(e *Element) {
	e.doc = d
	if e.ID == 0 {
		d.nextID++
		e.ID = d.nextID
	} else if e.ID > d.nextID {
		d.nextID = e.ID
	}
	for _, c := range e.Children {
		if c.doc != d || c.ID == 0 {
			d.adopt(c)
		}
	}
	if e.Shadow != nil && (e.Shadow.doc != d || e.Shadow.ID == 0) {
		d.adopt(e.Shadow)
	}
}

func (d *Document) notify(m Mutation) {
	if d != nil && d.OnMutation != nil {
		d.OnMutation(m)
	}
}
