package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
)

// BackendName is the registered name of the static backend.
const BackendName = "static"

// maxBodySize caps fetched documents and stylesheets.
const maxBodySize = 10 << 20

// Reader loads pages from inline markup, local files or HTTP and parses
// them without running scripts.
type Reader struct {
	Client   *http.Client
	Viewport model.Size
	Logger   *slog.Logger
}

// NewReader returns a reader with a bounded HTTP client.
func NewReader(vp model.Size, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		Client:   &http.Client{Timeout: 30 * time.Second},
		Viewport: vp,
		Logger:   logger,
	}
}

func init() {
	platform.Register(BackendName, func(_ context.Context, opts platform.ProviderOptions) (*platform.Provider, error) {
		return &platform.Provider{Reader: NewReader(opts.Viewport, nil)}, nil
	})
}

// ReadDocument implements platform.Reader.
func (r *Reader) ReadDocument(ctx context.Context, opts platform.ReadOptions) (*model.Document, error) {
	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = r.Viewport
	}
	po := Options{URL: opts.URL, Viewport: vp, Fetch: r.Fetch, Logger: r.Logger}

	var data []byte
	switch {
	case opts.HTML != "":
		data = []byte(opts.HTML)
	case opts.File != "":
		abs, err := filepath.Abs(opts.File)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		data, err = os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("snapshot: read file: %w", err)
		}
		if po.URL == "" {
			po.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
		}
	case opts.URL != "":
		var err error
		data, err = r.Fetch(ctx, opts.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("snapshot: nothing to read: need HTML, a file or a URL")
	}
	return Parse(ctx, bytes.NewReader(data), po)
}

// Fetch loads http(s) and file URLs.
func (r *Reader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch %s: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		data, err := os.ReadFile(filepath.FromSlash(u.Path))
		if err != nil {
			return nil, fmt.Errorf("snapshot: fetch %s: %w", rawURL, err)
		}
		return data, nil
	case "http", "https":
	default:
		return nil, fmt.Errorf("snapshot: fetch %s: unsupported scheme %q", rawURL, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch %s: %w", rawURL, err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("snapshot: fetch %s: %s", rawURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch %s: %w", rawURL, err)
	}
	return data, nil
}
