package model

import "strings"

// Style is the subset of computed style the detector reads.
type Style struct {
	Display       string            `yaml:"display"        json:"display"`
	Visibility    string            `yaml:"visibility"     json:"visibility"`
	Opacity       float64           `yaml:"opacity"        json:"opacity"`
	Cursor        string            `yaml:"cursor"         json:"cursor"`
	PointerEvents string            `yaml:"pointer_events" json:"pointer_events"`
	Before        string            `yaml:"before,omitempty" json:"before,omitempty"` // ::before content
	After         string            `yaml:"after,omitempty"  json:"after,omitempty"`  // ::after content
	Vars          map[string]string `yaml:"vars,omitempty"   json:"vars,omitempty"`   // Custom properties
}

// DefaultStyle is the computed style of an unstyled element.
func DefaultStyle() Style {
	return Style{
		Display:       "inline",
		Visibility:    "visible",
		Opacity:       1,
		Cursor:        "auto",
		PointerEvents: "auto",
		Before:        "none",
		After:         "none",
	}
}

// Var returns a custom property value, trimmed.
func (s Style) Var(name string) string {
	return strings.TrimSpace(s.Vars[name])
}

// HasClass reports whether the class list contains name.
func (e *Element) HasClass(name string) bool {
	for _, c := range strings.Fields(e.Attrs["class"]) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass adds name to the class list.
func (e *Element) AddClass(name string) {
	if e.HasClass(name) {
		return
	}
	cls := strings.TrimSpace(e.Attrs["class"])
	if cls == "" {
		cls = name
	} else {
		cls += " " + name
	}
	e.SetAttr("class", cls)
	e.doc.notify(Mutation{Kind: MutationClass, Target: e, Name: name, Added: true})
}

// RemoveClass removes name from the class list.
func (e *Element) RemoveClass(name string) {
	if !e.HasClass(name) {
		return
	}
	var kept []string
	for _, c := range strings.Fields(e.Attrs["class"]) {
		if c != name {
			kept = append(kept, c)
		}
	}
	e.SetAttr("class", strings.Join(kept, " "))
	e.doc.notify(Mutation{Kind: MutationClass, Target: e, Name: name, Added: false})
}
