package highlight

import (
	_ "embed"

	"github.com/mj1618/findclose/internal/model"
)

// Class names and stylesheet markers shared with the packaged stylesheet.
const (
	MarkerClass      = "findclose-btn"
	ActiveClass      = "findclose-active"
	InlineStyleID    = "findclose-inline-style"
	StylesheetPath   = "/findclose-ext.css"
	DurationProperty = "--fc-duration"
	DurationValue    = "0.3s"
)

// Stylesheet is the supporting stylesheet, injected inline when the packaged
// copy is not present.
//
//go:embed findclose-ext.css
var Stylesheet string

// HasStylesheet reports whether doc already carries the stylesheet: linked
// by path, visible through the duration custom property on the document
// element, or injected inline by EnsureStyles.
func HasStylesheet(doc *model.Document) bool {
	if doc == nil {
		return false
	}
	if doc.HasStyleSheet(StylesheetPath) || doc.GetElementByID(InlineStyleID) != nil {
		return true
	}
	return doc.Root != nil && doc.Root.Style.Var(DurationProperty) == DurationValue
}

// EnsureStyles makes the stylesheet available in doc, injecting an inline
// <style> at most once. It reports whether styles are in place.
func EnsureStyles(doc *model.Document) bool {
	if doc == nil {
		return false
	}
	if HasStylesheet(doc) {
		return true
	}
	parent := doc.Head()
	if parent == nil {
		parent = doc.Root
	}
	if parent == nil {
		return false
	}
	style := doc.CreateElement("style")
	style.SetAttr("id", InlineStyleID)
	style.Text = Stylesheet
	style.Style.Display = "none"
	parent.Append(style)
	return true
}
