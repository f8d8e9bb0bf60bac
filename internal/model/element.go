package model

import (
	"errors"
	"strconv"
	"strings"
)

// ErrCrossOrigin is returned when a frame's document belongs to another origin.
var ErrCrossOrigin = errors.New("model: cross-origin frame document is not accessible")

// ShadowRootTag is the tag given to shadow root fragments.
const ShadowRootTag = "#shadow-root"

// Rect is a bounding box in CSS pixels relative to the owning document's viewport.
type Rect struct {
	X      float64 `yaml:"x"      json:"x"`
	Y      float64 `yaml:"y"      json:"y"`
	Width  float64 `yaml:"width"  json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Element is one node of the element tree. Elements are mutable: the
// highlight controller toggles classes on them and live backends refresh
// their geometry and style in place so identity survives across scans.
type Element struct {
	ID       int               // Stable numeric identity within a Document
	Tag      string            // Lower-case tag name
	Attrs    map[string]string // Attribute values by lower-case name
	Text     string            // Concatenated text of direct text children
	Style    Style             // Computed style at snapshot time
	Rect     Rect              // Bounding client rect
	OnClick  bool              // Has a click handler property
	Editable bool              // isContentEditable

	Parent   *Element
	Children []*Element
	Shadow   *Element // Open shadow root attached to this element
	Host     *Element // Set on shadow roots: the element hosting them

	hovered   bool
	doc       *Document
	frame     *Document
	frameErr  error
	listeners map[string][]*listener
}

// NewElement creates a detached element.
func NewElement(tag string) *Element {
	return &Element{
		Tag:   strings.ToLower(tag),
		Attrs: map[string]string{},
		Style: DefaultStyle(),
	}
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// GetAttr returns the attribute value or "".
func (e *Element) GetAttr(name string) string {
	return e.Attrs[name]
}

// HasAttr reports whether the attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attrs[name]
	return ok
}

// SetAttr sets an attribute and returns e for chaining.
func (e *Element) SetAttr(name, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[strings.ToLower(name)] = value
	return e
}

// IDAttr returns the id attribute.
func (e *Element) IDAttr() string { return e.Attrs["id"] }

// ClassName returns the raw class attribute.
func (e *Element) ClassName() string { return e.Attrs["class"] }

// Role returns the explicit ARIA role.
func (e *Element) Role() string { return e.Attrs["role"] }

// IsShadowRoot reports whether e is a shadow root fragment.
func (e *Element) IsShadowRoot() bool { return e.Host != nil }

// Hovered reports whether the pointer is over the element.
func (e *Element) Hovered() bool { return e.hovered }

// TabIndex mirrors HTMLElement.tabIndex: the parsed attribute when valid,
// otherwise 0 for natively focusable elements and -1 for everything else.
func (e *Element) TabIndex() int {
	if raw, ok := e.Attrs["tabindex"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return n
		}
	}
	switch e.Tag {
	case "a", "area":
		if e.HasAttr("href") {
			return 0
		}
	case "button", "select", "textarea", "iframe", "summary":
		return 0
	case "input":
		if !strings.EqualFold(e.Attrs["type"], "hidden") {
			return 0
		}
	}
	if e.Editable {
		return 0
	}
	return -1
}

// Disabled reports whether the element carries the disabled attribute.
func (e *Element) Disabled() bool { return e.HasAttr("disabled") }

// OwnerDocument returns the document the element was adopted into.
func (e *Element) OwnerDocument() *Document { return e.doc }

// ParentElement returns the parent element, or nil for a root or for a
// top-level node of a shadow root.
func (e *Element) ParentElement() *Element {
	if e.Parent == nil || e.Parent.IsShadowRoot() {
		return nil
	}
	return e.Parent
}

// IsConnected reports whether the element is reachable from its document's
// root, following shadow hosts outward.
func (e *Element) IsConnected() bool {
	n := e
	for {
		switch {
		case n.Parent != nil:
			n = n.Parent
		case n.Host != nil:
			n = n.Host
		default:
			return n.doc != nil && n.doc.Root == n
		}
	}
}

// Contains mirrors Node.contains: inclusive, light tree only.
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.Parent {
		if n == e {
			return true
		}
	}
	return false
}

// Append adds children and returns e for chaining.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		if c.Parent != nil && c.Parent != e {
			c.Parent.removeChild(c)
		}
		c.Parent = e
		e.Children = append(e.Children, c)
		if e.doc != nil {
			e.doc.adopt(c)
			e.doc.notify(Mutation{Kind: MutationInsert, Target: e, Child: c})
		}
	}
	return e
}

// SetChildren replaces the child list. Former children that were not
// re-parented elsewhere become detached.
func (e *Element) SetChildren(children ...*Element) {
	keep := make(map[*Element]bool, len(children))
	for _, c := range children {
		keep[c] = true
	}
	for _, old := range e.Children {
		if !keep[old] && old.Parent == e {
			old.Parent = nil
		}
	}
	e.Children = e.Children[:0]
	for _, c := range children {
		if c.Parent != nil && c.Parent != e {
			c.Parent.removeChild(c)
		}
		c.Parent = e
		e.Children = append(e.Children, c)
		if e.doc != nil {
			e.doc.adopt(c)
		}
	}
}

// Remove detaches the element from its parent.
func (e *Element) Remove() {
	if e.Parent != nil {
		e.Parent.removeChild(e)
		e.Parent = nil
	}
}

func (e *Element) removeChild(c *Element) {
	for i, ch := range e.Children {
		if ch == c {
			e.Children = append(e.Children[:i:i], e.Children[i+1:]...)
			return
		}
	}
}

// AttachShadow attaches an open shadow root holding children and returns it.
func (e *Element) AttachShadow(children ...*Element) *Element {
	root := NewElement(ShadowRootTag)
	root.Host = e
	e.Shadow = root
	if e.doc != nil {
		e.doc.adopt(root)
	}
	root.Append(children...)
	return root
}

// SetContentDocument makes doc the same-origin document of a frame element.
func (e *Element) SetContentDocument(doc *Document) {
	e.frame = doc
	e.frameErr = nil
	if doc != nil {
		doc.FrameElement = e
	}
}

// SetCrossOrigin marks the frame element's document as inaccessible.
func (e *Element) SetCrossOrigin() {
	e.frame = nil
	e.frameErr = ErrCrossOrigin
}

// ContentDocument returns the frame's document. Cross-origin frames return
// ErrCrossOrigin; frames without a loaded document return nil, nil.
func (e *Element) ContentDocument() (*Document, error) {
	if e.frameErr != nil {
		return nil, e.frameErr
	}
	return e.frame, nil
}

// Walk visits e and its light-tree descendants in document order. Returning
// false from fn skips the element's subtree.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// QuerySelector returns the first light-tree descendant matching fn.
func (e *Element) QuerySelector(fn func(*Element) bool) *Element {
	var found *Element
	for _, c := range e.Children {
		c.Walk(func(n *Element) bool {
			if found != nil {
				return false
			}
			if fn(n) {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

// TextContent concatenates the text of e and all light-tree descendants.
func (e *Element) TextContent() string {
	var b strings.Builder
	e.Walk(func(n *Element) bool {
		b.WriteString(n.Text)
		return true
	})
	return b.String()
}

// InnerText approximates rendered text: like TextContent but skipping
// subtrees that are not rendered.
func (e *Element) InnerText() string {
	if e.Style.Display == "none" {
		return ""
	}
	var parts []string
	e.Walk(func(n *Element) bool {
		if n.Style.Display == "none" || n.Tag == "script" || n.Tag == "style" {
			return false
		}
		if t := strings.TrimSpace(n.Text); t != "" {
			parts = append(parts, t)
		}
		return true
	})
	return strings.Join(parts, " ")
}
