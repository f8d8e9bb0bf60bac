package detect

import (
	"math"

	"github.com/mj1618/findclose/internal/model"
)

// Visible reports whether el passes the visibility gate: connected, rendered,
// not transparent, large enough (unless it draws a pseudo glyph) and
// intersecting the viewport within the padding.
func (x *Extractor) Visible(el *model.Element) bool {
	if el == nil || !el.IsConnected() {
		return false
	}
	st := el.Style
	if st.Display == "none" || st.Visibility == "hidden" || st.Opacity <= x.Thresholds.HiddenOpacity {
		return false
	}
	r := el.Rect
	if r.Width < x.Thresholds.MinVisibleSize || r.Height < x.Thresholds.MinVisibleSize {
		if !HasPseudoGlyph(el) {
			return false
		}
	}
	vp := viewportOf(el)
	pad := x.Thresholds.ViewportPadding
	return r.Bottom() >= -pad &&
		r.Right() >= -pad &&
		r.Top() <= vp.Height+pad &&
		r.Left() <= vp.Width+pad
}

func (x *Extractor) isCompact(r model.Rect) bool {
	return r.Width <= x.Thresholds.CompactSize && r.Height <= x.Thresholds.CompactSize
}

func (x *Extractor) isCornerPositioned(el *model.Element) bool {
	return x.nearViewportTopRight(el) ||
		x.nearViewportTopLeft(el) ||
		x.nearContainerTopRight(el) ||
		x.nearContainerTopLeft(el)
}

func (x *Extractor) viewportMargins(vp model.Size) (horizontal, vertical float64) {
	t := x.Thresholds
	horizontal = clamp(vp.Width*t.CornerWidthFraction, t.CornerMarginMin, t.CornerMarginMax)
	vertical = clamp(vp.Height*t.CornerHeightFraction, t.CornerMarginMin, t.CornerMarginMax)
	return horizontal, vertical
}

func (x *Extractor) nearViewportTopRight(el *model.Element) bool {
	vp := viewportOf(el)
	h, v := x.viewportMargins(vp)
	r, slack := el.Rect, x.Thresholds.CornerSlack
	return r.Right() >= vp.Width-h &&
		r.Right() <= vp.Width+slack &&
		r.Top() >= -slack &&
		r.Top() <= v
}

func (x *Extractor) nearViewportTopLeft(el *model.Element) bool {
	h, v := x.viewportMargins(viewportOf(el))
	r, slack := el.Rect, x.Thresholds.CornerSlack
	return r.Left() >= -slack &&
		r.Left() <= h &&
		r.Top() >= -slack &&
		r.Top() <= v
}

// containerTolerance returns the parent rect and the corner tolerances, or
// ok=false when the element has no parent element large enough to count.
func (x *Extractor) containerTolerance(el *model.Element) (p model.Rect, th, tv float64, ok bool) {
	parent := el.ParentElement()
	if parent == nil {
		return p, 0, 0, false
	}
	t := x.Thresholds
	p = parent.Rect
	if p.Width < t.ContainerMinSize || p.Height < t.ContainerMinSize {
		return p, 0, 0, false
	}
	th = clamp(p.Width*t.ContainerTolerance, t.ContainerToleranceMin, t.ContainerToleranceMax)
	tv = clamp(p.Height*t.ContainerTolerance, t.ContainerToleranceMin, t.ContainerToleranceMax)
	return p, th, tv, true
}

func (x *Extractor) nearContainerTopRight(el *model.Element) bool {
	p, th, tv, ok := x.containerTolerance(el)
	if !ok {
		return false
	}
	r := el.Rect
	return math.Abs(p.Right()-r.Right()) <= th && math.Abs(r.Top()-p.Top()) <= tv
}

func (x *Extractor) nearContainerTopLeft(el *model.Element) bool {
	p, th, tv, ok := x.containerTolerance(el)
	if !ok {
		return false
	}
	r := el.Rect
	return math.Abs(r.Left()-p.Left()) <= th && math.Abs(r.Top()-p.Top()) <= tv
}

func viewportOf(el *model.Element) model.Size {
	if doc := el.OwnerDocument(); doc != nil {
		return doc.Viewport
	}
	return model.Size{}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
