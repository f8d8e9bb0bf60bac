package model

import "strings"

// Brief is a compact element description used in scan reports.
type Brief struct {
	ID    int    `yaml:"i"               json:"i"`
	Tag   string `yaml:"tag"             json:"tag"`
	ElID  string `yaml:"id,omitempty"    json:"id,omitempty"`
	Class string `yaml:"class,omitempty" json:"class,omitempty"`
	Role  string `yaml:"role,omitempty"  json:"role,omitempty"`
	Path  string `yaml:"path,omitempty"  json:"path,omitempty"`
	Rect  Rect   `yaml:"rect"            json:"rect"`
}

// BriefOf summarises an element.
func BriefOf(e *Element) Brief {
	return Brief{
		ID:    e.ID,
		Tag:   e.Tag,
		ElID:  e.IDAttr(),
		Class: e.ClassName(),
		Role:  e.Role(),
		Path:  Path(e),
		Rect:  e.Rect,
	}
}

// Briefs summarises a list of elements.
func Briefs(els []*Element) []Brief {
	out := make([]Brief, 0, len(els))
	for _, e := range els {
		out = append(out, BriefOf(e))
	}
	return out
}

// Path returns a breadcrumb from the outermost document to e, joined with
// " > ". Shadow roots appear as "#shadow-root" and frame boundaries as the
// frame element's step followed by "|".
func Path(e *Element) string {
	var steps []string
	for n := e; n != nil; {
		if n.IsShadowRoot() {
			steps = append(steps, ShadowRootTag)
			n = n.Host
			continue
		}
		steps = append(steps, pathStep(n))
		if n.Parent != nil {
			n = n.Parent
			continue
		}
		if n.doc != nil && n.doc.FrameElement != nil {
			steps = append(steps, "|")
			n = n.doc.FrameElement
			continue
		}
		break
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, " > ")
}

func pathStep(e *Element) string {
	step := e.Tag
	if id := e.IDAttr(); id != "" {
		step += "#" + id
	}
	if cls := strings.Fields(e.ClassName()); len(cls) > 0 {
		step += "." + cls[0]
	}
	return step
}
