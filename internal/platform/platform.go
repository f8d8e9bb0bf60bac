package platform

import (
	"context"

	"github.com/mj1618/findclose/internal/model"
)

// Reader loads a page into the element model.
type Reader interface {
	// ReadDocument returns the top document of the page named by opts, with
	// same-origin frames and open shadow roots attached.
	ReadDocument(ctx context.Context, opts ReadOptions) (*model.Document, error)
}

// Screenshotter captures the rendered page.
type Screenshotter interface {
	// CaptureViewport returns the encoded image of the current viewport.
	CaptureViewport(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
}
