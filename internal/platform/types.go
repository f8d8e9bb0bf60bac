package platform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mj1618/findclose/internal/model"
)

// ParseViewport parses a "WIDTHxHEIGHT" string such as "1280x800".
func ParseViewport(s string) (model.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return model.Size{}, fmt.Errorf("invalid viewport %q: expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return model.Size{}, fmt.Errorf("invalid viewport %q: %w", s, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return model.Size{}, fmt.Errorf("invalid viewport %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return model.Size{}, fmt.Errorf("invalid viewport %q: dimensions must be positive", s)
	}
	return model.Size{Width: float64(width), Height: float64(height)}, nil
}

// ParseRect parses a "x,y,w,h" string into a Rect.
func ParseRect(s string) (*model.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid rect %q: expected x,y,w,h", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rect %q: %w", s, err)
		}
		vals[i] = v
	}
	return &model.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// ProviderOptions configure a backend.
type ProviderOptions struct {
	RemoteURL string     // Attach to a running browser instead of launching one
	Headless  bool       // Launch without a window
	Stealth   bool       // Hide automation fingerprints
	Viewport  model.Size // Initial viewport
}

// ReadOptions name the page to load.
type ReadOptions struct {
	URL      string        // Page URL; also the base for relative frame sources
	File     string        // Local HTML file; overrides URL for loading
	HTML     string        // Inline markup; overrides File and URL for loading
	Viewport model.Size    // Zero keeps the backend's viewport
	Settle   time.Duration // Extra wait after load for late-inserted overlays
}

// Source describes where opts load from, for logging.
func (o ReadOptions) Source() string {
	switch {
	case o.HTML != "":
		return "inline"
	case o.File != "":
		return o.File
	default:
		return o.URL
	}
}

// ScreenshotOptions configures a capture.
type ScreenshotOptions struct {
	Format  string      // "png" or "jpg"
	Quality int         // JPEG quality 1-100 (ignored for PNG)
	Clip    *model.Rect // Capture only this region (nil = viewport)
}
