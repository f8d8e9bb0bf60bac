package platform

import (
	"testing"
	"time"
)

func TestParseRect_Valid(t *testing.T) {
	r, err := ParseRect("10,20,300,400")
	if err != nil {
		t.Fatal(err)
	}
	if r.X != 10 || r.Y != 20 || r.Width != 300 || r.Height != 400 {
		t.Errorf("got %+v, want {10 20 300 400}", r)
	}
}

func TestParseRect_WithSpacesAndFractions(t *testing.T) {
	r, err := ParseRect("10.5, 20, 300, 400.25")
	if err != nil {
		t.Fatal(err)
	}
	if r.X != 10.5 || r.Height != 400.25 {
		t.Errorf("got %+v", r)
	}
}

func TestParseRect_Invalid(t *testing.T) {
	tests := []string{
		"",
		"10,20,300",
		"10,20,300,400,500",
		"a,b,c,d",
		"10,20,abc,400",
	}
	for _, s := range tests {
		_, err := ParseRect(s)
		if err == nil {
			t.Errorf("ParseRect(%q) should fail", s)
		}
	}
}

func TestParseViewport(t *testing.T) {
	vp, err := ParseViewport("1280x800")
	if err != nil {
		t.Fatal(err)
	}
	if vp.Width != 1280 || vp.Height != 800 {
		t.Errorf("got %+v, want 1280x800", vp)
	}
	if _, err := ParseViewport(" 1920X1080 "); err != nil {
		t.Errorf("upper-case separator: %v", err)
	}
	for _, s := range []string{"", "1280", "1280x", "ax800", "0x800", "-5x10"} {
		if _, err := ParseViewport(s); err == nil {
			t.Errorf("ParseViewport(%q) should fail", s)
		}
	}
}

func TestReadOptions_Source(t *testing.T) {
	tests := []struct {
		opts ReadOptions
		want string
	}{
		{ReadOptions{URL: "https://a.example/", File: "page.html", HTML: "<p>"}, "inline"},
		{ReadOptions{URL: "https://a.example/", File: "page.html"}, "page.html"},
		{ReadOptions{URL: "https://a.example/", Settle: time.Second}, "https://a.example/"},
	}
	for _, tt := range tests {
		if got := tt.opts.Source(); got != tt.want {
			t.Errorf("Source() = %q, want %q", got, tt.want)
		}
	}
}
