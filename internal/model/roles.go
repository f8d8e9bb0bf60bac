package model

import "strings"

// ClickableRoles are ARIA roles whose elements accept a click.
var ClickableRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"checkbox": true,
	"radio":    true,
	"switch":   true,
	"tab":      true,
	"menuitem": true,
	"option":   true,
}

// ClickableInputTypes are <input> types that act on click rather than on typing.
var ClickableInputTypes = map[string]bool{
	"button":   true,
	"submit":   true,
	"reset":    true,
	"checkbox": true,
	"radio":    true,
	"file":     true,
	"image":    true,
	"color":    true,
	"range":    true,
}

// TagPreference ranks elements for tie-breaking: native buttons and
// role=button first, then links, then everything else.
func TagPreference(e *Element) int {
	switch {
	case e.Tag == "button", e.Role() == "button":
		return 6
	case e.Tag == "a":
		return 3
	default:
		return 1
	}
}

// InputType returns the lower-cased input type, defaulting to "text".
func InputType(e *Element) string {
	t := strings.ToLower(strings.TrimSpace(e.Attrs["type"]))
	if t == "" {
		return "text"
	}
	return t
}

// IsInteractionTarget reports whether a click on e is meant for the page
// (a control, link, editable field, ...) rather than for empty space.
func IsInteractionTarget(e *Element) bool {
	if e == nil || e.Disabled() {
		return false
	}
	switch e.Tag {
	case "button", "a", "select", "textarea", "summary":
		return true
	case "label":
		if e.HasAttr("for") {
			return true
		}
	case "input":
		t := InputType(e)
		if t == "hidden" {
			return false
		}
		if ClickableInputTypes[t] {
			return true
		}
	}
	if e.Editable {
		return true
	}
	if ce, ok := e.Attr("contenteditable"); ok && (ce == "" || ce == "true") {
		return true
	}
	if ClickableRoles[e.Role()] {
		return true
	}
	if e.OnClick || e.HasAttr("onclick") {
		return true
	}
	if e.HasAttr("tabindex") && e.TabIndex() >= 0 {
		return true
	}
	if e.HasAttr("data-dismiss") || e.HasAttr("data-close") {
		return true
	}
	if e.Style.PointerEvents == "none" {
		return false
	}
	return e.Style.Cursor == "pointer"
}
