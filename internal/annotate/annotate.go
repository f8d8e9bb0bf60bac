// Package annotate draws detected close targets onto page screenshots.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/model"
)

// LabelMode controls the text drawn next to each box.
type LabelMode int

const (
	// LabelRank draws "#n", the target's rank in the scan.
	LabelRank LabelMode = iota
	// LabelCoords draws "(x,y)", the center in page coordinates.
	LabelCoords
	// LabelIDs draws "[id]", the element's numeric ID.
	LabelIDs
)

// ParseLabelMode converts a flag value to a LabelMode.
func ParseLabelMode(s string) (LabelMode, error) {
	switch strings.ToLower(s) {
	case "", "rank":
		return LabelRank, nil
	case "coords":
		return LabelCoords, nil
	case "ids":
		return LabelIDs, nil
	default:
		return LabelRank, fmt.Errorf("unknown label mode %q (expected rank, coords or ids)", s)
	}
}

// Target is one box to draw. Selected targets survived overlap resolution;
// the rest are drawn muted.
type Target struct {
	ID       int
	Rect     model.Rect
	Selected bool
}

// FromEvaluations converts scan evaluations to targets in top-page
// coordinates. Only selected candidates are kept unless all is set; hidden
// candidates are always dropped.
func FromEvaluations(evs []detect.Evaluation, all bool) []Target {
	var out []Target
	for _, ev := range evs {
		if !ev.Visible || (!ev.Selected && !all) {
			continue
		}
		out = append(out, Target{ID: ev.Element.ID, Rect: PageRect(ev.Element), Selected: ev.Selected})
	}
	return out
}

// PageRect returns el's rect in the coordinates of the top document by
// adding the offsets of every enclosing frame element.
func PageRect(el *model.Element) model.Rect {
	r := el.Rect
	doc := el.OwnerDocument()
	for doc != nil && doc.FrameElement != nil {
		fe := doc.FrameElement
		r.X += fe.Rect.X
		r.Y += fe.Rect.Y
		doc = fe.OwnerDocument()
	}
	return r
}

// Offset moves targets into the coordinates of region, for captures clipped
// to it. Targets entirely outside region are dropped.
func Offset(targets []Target, region model.Rect) []Target {
	var out []Target
	for _, t := range targets {
		r := t.Rect
		if r.X+r.Width <= region.X || r.Y+r.Height <= region.Y ||
			r.X >= region.X+region.Width || r.Y >= region.Y+region.Height {
			continue
		}
		r.X -= region.X
		r.Y -= region.Y
		t.Rect = r
		out = append(out, t)
	}
	return out
}

// Colors used for boxes and labels.
var (
	SelectedColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	RejectedColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	TextColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	OutlineColor  = color.RGBA{R: 0, G: 0, B: 0, A: 200}
)

// Draw returns a copy of img with each target boxed and labelled. Target
// rects are in CSS pixels of a viewport of size vp; they are scaled to the
// image, which accounts for device pixel ratio and prior downscaling.
func Draw(img image.Image, targets []Target, vp model.Size, mode LabelMode) *image.RGBA {
	rgba := ToRGBA(img)

	b := img.Bounds()
	scaleX, scaleY := 1.0, 1.0
	if vp.Width > 0 {
		scaleX = float64(b.Dx()) / vp.Width
	}
	if vp.Height > 0 {
		scaleY = float64(b.Dy()) / vp.Height
	}

	rank := 0
	for _, t := range targets {
		c := RejectedColor
		if t.Selected {
			rank++
			c = SelectedColor
		}
		x := b.Min.X + int(t.Rect.X*scaleX)
		y := b.Min.Y + int(t.Rect.Y*scaleY)
		w := int(t.Rect.Width * scaleX)
		h := int(t.Rect.Height * scaleY)
		drawRectangle(rgba, x, y, x+w, y+h, c)
		if t.Selected {
			drawRectangle(rgba, x+1, y+1, x+w-1, y+h-1, c)
		}

		var label string
		switch mode {
		case LabelIDs:
			label = fmt.Sprintf("[%d]", t.ID)
		case LabelCoords:
			label = fmt.Sprintf("(%d,%d)", int(t.Rect.X+t.Rect.Width/2), int(t.Rect.Y+t.Rect.Height/2))
		default:
			if !t.Selected {
				continue
			}
			label = fmt.Sprintf("#%d", rank)
		}
		drawTextWithOutline(rgba, label, x+w/2, y+h+labelHeight, TextColor, OutlineColor)
	}
	return rgba
}

// Scale resizes img by factor in (0, 1]; other factors return img as is.
func Scale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor >= 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// Decode reads a PNG or JPEG capture.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("annotate: decode image: %w", err)
	}
	return img, nil
}

// Encode writes img as "png" or "jpg".
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	var err error
	switch format {
	case "jpg", "jpeg":
		if quality <= 0 {
			quality = 80
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("annotate: encode image: %w", err)
	}
	return nil
}

// ToRGBA converts any image to RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// basicfont.Face7x13 metrics.
const (
	glyphWidth  = 7
	labelHeight = 13
)

func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	r := image.Rect(x1, y1, x2, y2).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawTextWithOutline centers text horizontally on x with its baseline at y.
func drawTextWithOutline(img *image.RGBA, text string, x, y int, textColor, outlineColor color.Color) {
	offsetX := x - len(text)*glyphWidth/2
	stroke := func(dx, dy int, c color.Color) {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(offsetX+dx, y+dy),
		}
		d.DrawString(text)
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx != 0 || dy != 0 {
				stroke(dx, dy, outlineColor)
			}
		}
	}
	stroke(0, 0, textColor)
}
