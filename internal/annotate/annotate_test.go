package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/model"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func TestDrawBoxes(t *testing.T) {
	img := whiteImage(200, 160)
	targets := []Target{
		{ID: 1, Rect: model.Rect{X: 5, Y: 5, Width: 10, Height: 10}, Selected: true},
		{ID: 2, Rect: model.Rect{X: 50, Y: 5, Width: 10, Height: 10}},
	}
	// Viewport is half the image: a 2x device pixel ratio.
	out := Draw(img, targets, model.Size{Width: 100, Height: 80}, LabelRank)

	if got := out.RGBAAt(10, 10); got != SelectedColor {
		t.Errorf("selected corner = %v, want %v", got, SelectedColor)
	}
	if got := out.RGBAAt(11, 11); got != SelectedColor {
		t.Errorf("selected boxes are drawn twice as thick, got %v at inner corner", got)
	}
	if got := out.RGBAAt(29, 20); got != SelectedColor {
		t.Errorf("selected right edge = %v, want %v", got, SelectedColor)
	}
	if got := out.RGBAAt(100, 10); got != RejectedColor {
		t.Errorf("rejected corner = %v, want %v", got, RejectedColor)
	}
	if got := out.RGBAAt(20, 20); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("box interior changed: %v", got)
	}
	if img.RGBAAt(10, 10) != (color.RGBA{255, 255, 255, 255}) {
		t.Error("Draw must not modify its input")
	}
}

func TestDrawClipsToImage(t *testing.T) {
	img := whiteImage(50, 50)
	targets := []Target{{Rect: model.Rect{X: 40, Y: 40, Width: 30, Height: 30}, Selected: true}}
	out := Draw(img, targets, model.Size{Width: 50, Height: 50}, LabelCoords)
	if got := out.RGBAAt(40, 40); got != SelectedColor {
		t.Errorf("corner = %v, want %v", got, SelectedColor)
	}
	if got := out.RGBAAt(49, 45); got != SelectedColor {
		t.Errorf("clipped right edge = %v, want %v", got, SelectedColor)
	}
}

func TestScale(t *testing.T) {
	img := whiteImage(200, 100)
	got := Scale(img, 0.5).Bounds()
	if got.Dx() != 100 || got.Dy() != 50 {
		t.Errorf("scaled to %v, want 100x50", got)
	}
	if Scale(img, 1) != image.Image(img) {
		t.Error("factor 1 should return the input")
	}
	if Scale(img, 0) != image.Image(img) {
		t.Error("factor 0 should return the input")
	}
}

func TestEncodeDecode(t *testing.T) {
	img := whiteImage(8, 6)
	for _, format := range []string{"png", "jpg"} {
		var buf bytes.Buffer
		if err := Encode(&buf, img, format, 0); err != nil {
			t.Fatalf("%s: encode: %v", format, err)
		}
		back, err := Decode(buf.Bytes())
		if err != nil {
			t.Fatalf("%s: decode: %v", format, err)
		}
		if back.Bounds() != img.Bounds() {
			t.Errorf("%s: bounds = %v, want %v", format, back.Bounds(), img.Bounds())
		}
	}
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParseLabelMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LabelMode
		wantErr bool
	}{
		{"", LabelRank, false},
		{"rank", LabelRank, false},
		{"COORDS", LabelCoords, false},
		{"ids", LabelIDs, false},
		{"names", LabelRank, true},
	}
	for _, tt := range tests {
		got, err := ParseLabelMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLabelMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLabelMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPageRectAcrossFrames(t *testing.T) {
	btn := model.El("button").WithRect(10, 20, 30, 30)
	inner := model.NewPage("https://news.example/embed", 300, 250, btn)
	frame := model.El("iframe").WithRect(100, 200, 300, 250)
	model.NewPage("https://news.example/", 800, 600, frame)
	frame.SetContentDocument(inner)

	got := PageRect(btn)
	want := model.Rect{X: 110, Y: 220, Width: 30, Height: 30}
	if got != want {
		t.Errorf("PageRect = %+v, want %+v", got, want)
	}
	if got := PageRect(frame); got != frame.Rect {
		t.Errorf("top-level rect changed: %+v", got)
	}
}

func TestFromEvaluations(t *testing.T) {
	a := model.El("button").WithRect(1, 1, 10, 10)
	b := model.El("span").WithRect(2, 2, 10, 10)
	c := model.El("a").WithRect(3, 3, 10, 10)
	model.NewPage("https://news.example/", 800, 600, a, b, c)
	evs := []detect.Evaluation{
		{Element: a, Visible: true, Selected: true},
		{Element: b, Visible: true},
		{Element: c},
	}

	if got := FromEvaluations(evs, false); len(got) != 1 || got[0].ID != a.ID || !got[0].Selected {
		t.Errorf("selected only = %+v", got)
	}
	got := FromEvaluations(evs, true)
	if len(got) != 2 {
		t.Fatalf("all = %+v, want 2 visible targets", got)
	}
	if got[1].ID != b.ID || got[1].Selected {
		t.Errorf("rejected target = %+v", got[1])
	}
}

func TestOffset(t *testing.T) {
	targets := []Target{
		{ID: 1, Rect: model.Rect{X: 110, Y: 60, Width: 20, Height: 20}, Selected: true},
		{ID: 2, Rect: model.Rect{X: 10, Y: 10, Width: 20, Height: 20}, Selected: true},
		{ID: 3, Rect: model.Rect{X: 95, Y: 45, Width: 10, Height: 10}},
	}
	got := Offset(targets, model.Rect{X: 100, Y: 50, Width: 200, Height: 100})
	if len(got) != 2 {
		t.Fatalf("got %d targets, want 2: %+v", len(got), got)
	}
	if got[0].ID != 1 || got[0].Rect != (model.Rect{X: 10, Y: 10, Width: 20, Height: 20}) {
		t.Errorf("first target = %+v", got[0])
	}
	if got[1].ID != 3 || got[1].Rect.X != -5 || got[1].Rect.Y != -5 {
		t.Errorf("partly visible target = %+v", got[1])
	}
	if !targets[0].Selected || targets[0].Rect.X != 110 {
		t.Error("input targets were modified")
	}
}
