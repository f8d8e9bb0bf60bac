package snapshot

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mj1618/findclose/internal/model"
)

// Text metrics of the approximate layout, relative to the font size.
const (
	defaultFontSize  = 16.0
	lineHeightFactor = 1.25
	charWidthFactor  = 0.5
	controlPadding   = 16.0
)

// Default sizes of replaced elements without explicit dimensions.
const (
	replacedWidth   = 300.0
	replacedHeight  = 150.0
	textInputWidth  = 150.0
	checkInputSize  = 13.0
	controlMinExtra = 8.0
)

// layout is a simple block/inline/absolute flow. It is not a CSS engine:
// margins, padding, floats and grid tracks are ignored; flex rows are laid
// out left to right with justify-content honored.
type layout struct {
	vp     model.Size
	styles map[*model.Element]computed
	abs    []absBox
}

type absBox struct {
	el               *model.Element
	cb               *model.Element // Containing block; nil is the initial one
	staticX, staticY float64
}

func newLayout(vp model.Size, styles map[*model.Element]computed) *layout {
	return &layout{vp: vp, styles: styles}
}

func (l *layout) run(root *model.Element) {
	if root == nil {
		return
	}
	h := l.box(root, 0, 0, l.vp.Width, l.vp.Height, nil)
	root.Rect.Height = math.Max(h, l.vp.Height)
	for i := 0; i < len(l.abs); i++ {
		l.placeAbsolute(l.abs[i])
	}
}

// box lays out a block-level element at (x, y) and returns its height.
func (l *layout) box(el *model.Element, x, y, width, refH float64, cb *model.Element) float64 {
	c := l.styles[el]
	if c.style.Display == "none" {
		hide(el)
		return 0
	}
	if w, ok := l.length(c, "width", width); ok {
		width = w
	}
	el.Rect = model.Rect{X: x, Y: y, Width: width}
	h, hasH := l.length(c, "height", refH)
	if isPositioned(c.position) {
		cb = el
	}
	inner := refH
	if hasH {
		inner = h
	}
	content := l.flow(el, x, y, width, inner, cb)
	if !hasH {
		h = content
	}
	if mh, ok := l.length(c, "min-height", refH); ok {
		h = math.Max(h, mh)
	}
	el.Rect.Height = h
	syncShadow(el)
	l.offset(el, c)
	return h
}

// flow lays out the content of el inside a box of the given width and
// returns the content height.
func (l *layout) flow(el *model.Element, x, y, width, refH float64, cb *model.Element) float64 {
	c := l.styles[el]
	if isFlexRow(c) {
		return l.flexRow(el, x, y, width, refH, cb)
	}
	cursorY := y
	lineX, lineH := x, 0.0
	fs := c.inherit.fontSize
	if tw := textWidth(ownText(el), fs); tw > 0 {
		lines := math.Max(1, math.Ceil(tw/math.Max(width, 1)))
		lineH = lineHeight(fs)
		cursorY += (lines - 1) * lineH
		lineX += math.Min(tw, width)
	}
	flush := func() {
		cursorY += lineH
		lineX, lineH = x, 0
	}
	for _, ch := range contentChildren(el) {
		cc := l.styles[ch]
		switch {
		case cc.style.Display == "none":
			hide(ch)
		case cc.position == "absolute" || cc.position == "fixed":
			acb := cb
			if cc.position == "fixed" {
				acb = nil
			}
			l.abs = append(l.abs, absBox{el: ch, cb: acb, staticX: lineX, staticY: cursorY})
		case isBlockLevel(cc.style.Display):
			if lineH > 0 {
				flush()
			}
			cursorY += l.box(ch, x, cursorY, width, refH, cb)
		default:
			w, h := l.inlineSize(ch, width, refH)
			if lineX > x && lineX+w > x+width {
				flush()
			}
			h = l.inlineBox(ch, lineX, cursorY, w, h, cb)
			lineX += w
			lineH = math.Max(lineH, h)
		}
	}
	return cursorY + lineH - y
}

// flexRow places children left to right and applies justify-content to the
// free space.
func (l *layout) flexRow(el *model.Element, x, y, width, refH float64, cb *model.Element) float64 {
	type item struct {
		el   *model.Element
		w, h float64
	}
	var items []item
	used := 0.0
	for _, ch := range contentChildren(el) {
		cc := l.styles[ch]
		switch {
		case cc.style.Display == "none":
			hide(ch)
		case cc.position == "absolute" || cc.position == "fixed":
			acb := cb
			if cc.position == "fixed" {
				acb = nil
			}
			l.abs = append(l.abs, absBox{el: ch, cb: acb, staticX: x, staticY: y})
		default:
			w, h := l.inlineSize(ch, width, refH)
			items = append(items, item{ch, w, h})
			used += w
		}
	}
	free := math.Max(0, width-used)
	start, gap := 0.0, 0.0
	switch strings.ToLower(l.styles[el].props["justify-content"]) {
	case "flex-end", "end", "right":
		start = free
	case "center":
		start = free / 2
	case "space-between":
		if len(items) > 1 {
			gap = free / float64(len(items)-1)
		}
	case "space-around":
		if len(items) > 0 {
			gap = free / float64(len(items))
			start = gap / 2
		}
	}
	cx, maxH := x+start, 0.0
	for _, it := range items {
		h := l.inlineBox(it.el, cx, y, it.w, it.h, cb)
		cx += it.w + gap
		maxH = math.Max(maxH, h)
	}
	return maxH
}

// inlineSize returns the width and explicit height (or -1) of an
// inline-level element.
func (l *layout) inlineSize(el *model.Element, avail, refH float64) (w, h float64) {
	c := l.styles[el]
	h = -1
	if v, ok := l.length(c, "height", refH); ok {
		h = v
	} else if v, ok := attrLength(el, "height"); ok && isReplaced(el) {
		h = v
	}
	if v, ok := l.length(c, "width", avail); ok {
		return v, h
	}
	if v, ok := attrLength(el, "width"); ok && isReplaced(el) {
		return v, h
	}
	return math.Min(l.intrinsicWidth(el), avail), h
}

// inlineBox lays out an inline-level element and returns its height.
func (l *layout) inlineBox(el *model.Element, x, y, w, h float64, cb *model.Element) float64 {
	c := l.styles[el]
	el.Rect = model.Rect{X: x, Y: y, Width: w}
	if isPositioned(c.position) {
		cb = el
	}
	inner := h
	if inner < 0 {
		inner = 0
	}
	content := l.flow(el, x, y, w, inner, cb)
	if h < 0 {
		h = content
		switch {
		case isReplaced(el):
			h = replacedDefaultHeight(el)
		case isControl(el):
			h = math.Max(content, lineHeight(c.inherit.fontSize)+controlMinExtra)
		case h == 0 && w > 0:
			h = lineHeight(c.inherit.fontSize)
		}
	}
	el.Rect.Height = h
	syncShadow(el)
	l.offset(el, c)
	return h
}

// intrinsicWidth is the shrink-to-fit width of el.
func (l *layout) intrinsicWidth(el *model.Element) float64 {
	c := l.styles[el]
	if c.style.Display == "none" {
		return 0
	}
	if v, ok := l.length(c, "width", l.vp.Width); ok {
		return v
	}
	if v, ok := attrLength(el, "width"); ok && isReplaced(el) {
		return v
	}
	if isReplaced(el) {
		return replacedDefaultWidth(el)
	}
	if w, ok := inputDefaultWidth(el); ok {
		return w
	}
	fs := c.inherit.fontSize
	inline := textWidth(ownText(el), fs)
	block := 0.0
	for _, ch := range contentChildren(el) {
		cc := l.styles[ch]
		switch {
		case cc.style.Display == "none", cc.position == "absolute", cc.position == "fixed":
		case isBlockLevel(cc.style.Display):
			block = math.Max(block, l.intrinsicWidth(ch))
		default:
			inline += l.intrinsicWidth(ch)
		}
	}
	w := math.Max(inline, block)
	if isControl(el) {
		w += controlPadding
	}
	return w
}

func (l *layout) placeAbsolute(a absBox) {
	el := a.el
	c := l.styles[el]
	ref := model.Rect{Width: l.vp.Width, Height: l.vp.Height}
	if a.cb != nil {
		ref = a.cb.Rect
	}
	left, hasL := l.edge(c, "left", ref.Width)
	right, hasR := l.edge(c, "right", ref.Width)
	top, hasT := l.edge(c, "top", ref.Height)
	bottom, hasB := l.edge(c, "bottom", ref.Height)

	w, hasW := l.length(c, "width", ref.Width)
	if !hasW {
		if hasL && hasR {
			w = math.Max(0, ref.Width-left-right)
		} else {
			w = math.Min(l.intrinsicWidth(el), ref.Width)
		}
	}
	h, hasH := l.length(c, "height", ref.Height)
	if !hasH && hasT && hasB {
		h, hasH = math.Max(0, ref.Height-top-bottom), true
	}

	x := a.staticX
	switch {
	case hasL:
		x = ref.X + left
	case hasR:
		x = ref.Right() - right - w
	}
	y := a.staticY
	if hasT {
		y = ref.Y + top
	}

	el.Rect = model.Rect{X: x, Y: y, Width: w}
	inner := 0.0
	if hasH {
		inner = h
	}
	content := l.flow(el, x, y, w, inner, el)
	if !hasH {
		h = content
	}
	el.Rect.Height = h
	syncShadow(el)
	if !hasT && hasB {
		shift(el, 0, ref.Bottom()-bottom-h-y)
	}
	l.offset(el, c)
}

// offset applies relative positioning and translate transforms.
func (l *layout) offset(el *model.Element, c computed) {
	var dx, dy float64
	if c.position == "relative" {
		if v, ok := l.length(c, "left", 0); ok {
			dx += v
		} else if v, ok := l.length(c, "right", 0); ok {
			dx -= v
		}
		if v, ok := l.length(c, "top", 0); ok {
			dy += v
		} else if v, ok := l.length(c, "bottom", 0); ok {
			dy -= v
		}
	}
	if t, ok := c.prop("transform"); ok {
		tx, ty := parseTranslate(t, el.Rect.Width, el.Rect.Height, l.vp, c.inherit.fontSize)
		dx += tx
		dy += ty
	}
	if dx != 0 || dy != 0 {
		shift(el, dx, dy)
	}
}

// edge resolves an inset property, falling back to the inset shorthand.
func (l *layout) edge(c computed, side string, ref float64) (float64, bool) {
	if v, ok := l.length(c, side, ref); ok {
		return v, true
	}
	inset, ok := c.prop("inset")
	if !ok {
		return 0, false
	}
	parts := strings.Fields(inset)
	idx := map[string][4]int{
		"top":    {0, 0, 0, 0},
		"right":  {0, 1, 1, 1},
		"bottom": {0, 0, 2, 2},
		"left":   {0, 1, 1, 3},
	}[side]
	if len(parts) == 0 || len(parts) > 4 {
		return 0, false
	}
	return parseLength(parts[idx[len(parts)-1]], ref, l.vp, c.inherit.fontSize)
}

func (l *layout) length(c computed, name string, ref float64) (float64, bool) {
	v, ok := c.prop(name)
	if !ok {
		return 0, false
	}
	return parseLength(v, ref, l.vp, c.inherit.fontSize)
}

// parseLength converts a CSS length to px. Percentages resolve against ref
// and fail when ref is zero; auto, calc() and unknown units fail.
func parseLength(v string, ref float64, vp model.Size, fontSize float64) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important")))
	if v == "" || v == "auto" {
		return 0, false
	}
	units := []struct {
		suffix string
		scale  func(float64) (float64, bool)
	}{
		{"px", func(f float64) (float64, bool) { return f, true }},
		{"rem", func(f float64) (float64, bool) { return f * defaultFontSize, true }},
		{"em", func(f float64) (float64, bool) { return f * fontSize, true }},
		{"vw", func(f float64) (float64, bool) { return f * vp.Width / 100, vp.Width > 0 }},
		{"vh", func(f float64) (float64, bool) { return f * vp.Height / 100, vp.Height > 0 }},
		{"%", func(f float64) (float64, bool) { return f * ref / 100, ref > 0 }},
	}
	for _, u := range units {
		if strings.HasSuffix(v, u.suffix) {
			f, err := strconv.ParseFloat(strings.TrimSuffix(v, u.suffix), 64)
			if err != nil {
				return 0, false
			}
			return u.scale(f)
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseTranslate extracts the translation of translate(), translateX() and
// translateY() functions. Percentages refer to the element's own box.
func parseTranslate(v string, w, h float64, vp model.Size, fontSize float64) (dx, dy float64) {
	for _, fn := range strings.Split(strings.ToLower(v), ")") {
		name, args, ok := strings.Cut(strings.TrimSpace(fn), "(")
		if !ok {
			continue
		}
		parts := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' })
		at := func(i int, ref float64) float64 {
			if i >= len(parts) {
				return 0
			}
			f, _ := parseLength(parts[i], ref, vp, fontSize)
			return f
		}
		switch strings.TrimSpace(name) {
		case "translate":
			dx += at(0, w)
			dy += at(1, h)
		case "translatex":
			dx += at(0, w)
		case "translatey":
			dy += at(0, h)
		}
	}
	return dx, dy
}

func attrLength(el *model.Element, name string) (float64, bool) {
	v, ok := el.Attr(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// contentChildren returns the rendered children of el: its shadow tree
// followed by its light children.
func contentChildren(el *model.Element) []*model.Element {
	if el.Shadow == nil {
		return el.Children
	}
	out := make([]*model.Element, 0, len(el.Shadow.Children)+len(el.Children))
	out = append(out, el.Shadow.Children...)
	return append(out, el.Children...)
}

// ownText is the element's own text plus generated pseudo-element content.
func ownText(el *model.Element) string {
	text := strings.TrimSpace(el.Text)
	if el.Tag == "input" {
		text = el.GetAttr("value")
	}
	for _, p := range []string{el.Style.Before, el.Style.After} {
		if p != "none" && p != "normal" {
			text += strings.Trim(p, `"'`)
		}
	}
	return text
}

func textWidth(s string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(s)) * fontSize * charWidthFactor
}

func lineHeight(fontSize float64) float64 { return fontSize * lineHeightFactor }

func isPositioned(position string) bool { return position != "static" && position != "" }

func isBlockLevel(display string) bool {
	switch display {
	case "block", "flex", "grid", "list-item", "table", "table-row", "flow-root":
		return true
	}
	return false
}

func isFlexRow(c computed) bool {
	switch c.style.Display {
	case "flex", "inline-flex":
	default:
		return false
	}
	dir := strings.ToLower(c.props["flex-direction"])
	return dir == "" || dir == "row" || dir == "row-reverse"
}

func isReplaced(el *model.Element) bool {
	switch el.Tag {
	case "img", "iframe", "svg", "video", "canvas":
		return true
	case "input":
		return strings.EqualFold(el.GetAttr("type"), "image")
	}
	return false
}

func isControl(el *model.Element) bool {
	switch el.Tag {
	case "button", "select", "textarea":
		return true
	case "input":
		return !isReplaced(el)
	}
	return false
}

func replacedDefaultWidth(el *model.Element) float64 {
	switch el.Tag {
	case "img", "input":
		return 0
	}
	return replacedWidth
}

func replacedDefaultHeight(el *model.Element) float64 {
	if v, ok := attrLength(el, "height"); ok {
		return v
	}
	switch el.Tag {
	case "img", "input":
		return 0
	}
	return replacedHeight
}

// inputDefaultWidth is the width of an unstyled text-like input.
func inputDefaultWidth(el *model.Element) (float64, bool) {
	if el.Tag != "input" {
		return 0, false
	}
	switch model.InputType(el) {
	case "checkbox", "radio":
		return checkInputSize, true
	case "button", "submit", "reset", "image", "hidden":
		return 0, false
	}
	return textInputWidth, true
}

// syncShadow gives a shadow root fragment its host's box.
func syncShadow(el *model.Element) {
	if el.Shadow != nil {
		el.Shadow.Rect = el.Rect
	}
}

// hide zeroes the geometry of a subtree that is not rendered.
func hide(el *model.Element) {
	el.Rect = model.Rect{}
	if el.Shadow != nil {
		hide(el.Shadow)
	}
	for _, c := range el.Children {
		hide(c)
	}
}

// shift moves a laid-out subtree. Frame documents keep their own
// coordinates.
func shift(el *model.Element, dx, dy float64) {
	el.Rect.X += dx
	el.Rect.Y += dy
	if el.Shadow != nil {
		shift(el.Shadow, dx, dy)
	}
	for _, c := range el.Children {
		shift(c, dx, dy)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
